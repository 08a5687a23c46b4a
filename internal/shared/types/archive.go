package types

// ArchiveEntry is the index metadata for one compressed session blob.
// Name, working directory, and last command are denormalized from the
// session record so search never has to decompress a blob.
type ArchiveEntry struct {
	SessionID           string `json:"session_id"`
	ArchivedAt          int64  `json:"archived_at"`
	OriginalTimestamp   int64  `json:"original_timestamp"`
	ArchivePath         string `json:"archive_path"`
	CompressedSizeBytes int64  `json:"compressed_size_bytes"`
	OriginalSizeBytes   int64  `json:"original_size_bytes"`
	Name                string `json:"name"`
	WorkingDirectory    string `json:"working_directory"`
	LastCommand         string `json:"last_command"`
}

// CompressionRatio returns compressed/original size, or 0 for empty originals.
func (e *ArchiveEntry) CompressionRatio() float64 {
	if e.OriginalSizeBytes == 0 {
		return 0
	}
	return float64(e.CompressedSizeBytes) / float64(e.OriginalSizeBytes)
}

// SpaceSaved returns bytes reclaimed by compressing the original.
func (e *ArchiveEntry) SpaceSaved() int64 {
	return e.OriginalSizeBytes - e.CompressedSizeBytes
}
