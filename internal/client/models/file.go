package models

import "time"

// TrackedFile links a local path to the server file it was uploaded as.
type TrackedFile struct {
	Path      string
	FileID    string
	Version   int64
	Size      int64
	UpdatedAt time.Time
}
