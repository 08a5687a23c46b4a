package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wallon-qodo/multi-term-sub001/internal/archive"
	"github.com/wallon-qodo/multi-term-sub001/internal/infrastructure/config"
	"github.com/wallon-qodo/multi-term-sub001/internal/infrastructure/monitoring"
	"github.com/wallon-qodo/multi-term-sub001/internal/logging"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/id"
	"github.com/wallon-qodo/multi-term-sub001/internal/shared/types"
	"github.com/wallon-qodo/multi-term-sub001/internal/store"
)

func main() {
	root := flag.String("root", "", "Storage root directory (default: $STORAGE_ROOT)")
	sweep := flag.Bool("sweep", false, "Run one archive sweep over active history")
	ageDays := flag.Int("age-days", 0, "Override archive age threshold in days")
	search := flag.String("search", "", "Search archived sessions by name substring")
	dir := flag.String("dir", "", "Filter search by working directory substring")
	limit := flag.Int("limit", 20, "Maximum search results")
	rebuild := flag.Bool("rebuild", false, "Rebuild the archive index from the archive tree")
	stats := flag.Bool("stats", false, "Print archive statistics")
	restore := flag.String("restore", "", "Restore one archived session and print it")
	newSession := flag.String("new-session", "", "Create and persist a new session with the given name")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *root != "" {
		cfg.Storage.Root = *root
	}
	if cfg.Storage.Root == "" {
		log.Fatal("no storage root: pass -root or set STORAGE_ROOT")
	}
	if *ageDays > 0 {
		cfg.Archive.AgeThresholdDays = *ageDays
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	st, err := store.New(cfg.Storage.Root, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	metrics := monitoring.NewMetrics()
	mgr := archive.NewManager(st, st.Layout(), logger).WithMetrics(metrics)

	switch {
	case *newSession != "":
		wd, err := os.Getwd()
		if err != nil {
			wd = ""
		}
		rec := newSessionRecord(*newSession, wd, time.Now())
		if _, err := st.SaveSession(rec); err != nil {
			log.Fatalf("Failed to save session: %v", err)
		}
		printJSON(rec)

	case *sweep:
		summary := mgr.AutoArchiveOldSessions(cfg.Archive.AgeThreshold(), func(processed, total int) {
			fmt.Fprintf(os.Stderr, "\rsweep: %d/%d", processed, total)
		})
		fmt.Fprintln(os.Stderr)
		printJSON(summary)

	case *search != "" || *dir != "":
		results := mgr.Search(archive.Query{
			Name:             *search,
			WorkingDirectory: *dir,
			Limit:            *limit,
		})
		printJSON(results)

	case *rebuild:
		started := time.Now()
		if err := mgr.Rebuild(); err != nil {
			log.Fatalf("Rebuild failed: %v", err)
		}
		fmt.Fprintf(os.Stderr, "rebuilt in %s\n", time.Since(started).Round(time.Millisecond))
		printJSON(mgr.Stats())

	case *stats:
		printJSON(struct {
			Archive types.ArchiveStats  `json:"archive"`
			Metrics monitoring.Snapshot `json:"metrics"`
		}{mgr.Stats(), metrics.CurrentSnapshot()})

	case *restore != "":
		if !id.IsSessionID(*restore) {
			log.Fatalf("%q is not a session id", *restore)
		}
		rec, ok := mgr.RestoreSession(*restore)
		if !ok {
			log.Fatalf("Session %s not found in archive", *restore)
		}
		printJSON(rec)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// newSessionRecord builds an empty session with a freshly minted ID.
func newSessionRecord(name, workingDir string, now time.Time) *types.SessionRecord {
	ts := now.Unix()
	return &types.SessionRecord{
		Version:          types.RecordVersion,
		ID:               string(id.NewSessionID()),
		Name:             name,
		WorkingDirectory: workingDir,
		CreatedAt:        ts,
		ModifiedAt:       ts,
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}
