package models

import "time"

// VersionMetadata is one uploaded state of a file. It carries the full chunk
// list so any version can be rebuilt on its own. Never mutated after insert.
type VersionMetadata struct {
	ID     string
	FileID string
	Number int64
	Size   int64
	Chunks Descriptors

	// Hints recorded for external transformers; the service does not act on them.
	CompressionHint string
	EncryptionHint  string

	CreatedAt time.Time
}

// Ref returns the VersionRef pointing at v.
func (v *VersionMetadata) Ref() VersionRef {
	return VersionRef{MetadataID: v.ID, Number: v.Number, Size: v.Size, CreatedAt: v.CreatedAt}
}
