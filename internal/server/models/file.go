// Package models defines server-side data models persisted in the database.
package models

import "time"

// AccessLevel is what an access-list entry grants.
type AccessLevel string

const (
	AccessNone  AccessLevel = ""
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
)

// Allows reports whether l covers needed.
func (l AccessLevel) Allows(needed AccessLevel) bool {
	switch needed {
	case AccessRead:
		return l == AccessRead || l == AccessWrite
	case AccessWrite:
		return l == AccessWrite
	default:
		return false
	}
}

// Valid reports whether l is read or write.
func (l AccessLevel) Valid() bool {
	return l == AccessRead || l == AccessWrite
}

// IdentityKind names which identity attribute an access entry matches on.
type IdentityKind string

const (
	KindUserID     IdentityKind = "user_id"
	KindProviderID IdentityKind = "provider_id"
	KindEmail      IdentityKind = "email"
)

// AccessEntry grants Level to whoever carries Value in the attribute Kind.
type AccessEntry struct {
	Kind  IdentityKind `json:"kind"`
	Value string       `json:"value"`
	Level AccessLevel  `json:"level"`
}

// VersionRef points from a file to one of its immutable versions.
type VersionRef struct {
	MetadataID string    `json:"metadata_id"`
	Number     int64     `json:"number"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// File is the metadata of an uploaded file. Chunks are global; a file only
// references them through its versions.
type File struct {
	ID        string
	OwnerID   string
	Name      string
	Extension string
	Size      int64
	MimeType  string
	IsPublic  bool

	AccessList []AccessEntry
	Versions   []VersionRef

	// CurrentVersion is the highest version number handed out so far.
	CurrentVersion int64

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the file reference was removed.
func (f *File) Deleted() bool {
	return f.DeletedAt != nil
}

// LatestVersion returns the ref with the highest number.
func (f *File) LatestVersion() (VersionRef, bool) {
	var latest VersionRef
	found := false
	for _, v := range f.Versions {
		if !found || v.Number > latest.Number {
			latest = v
			found = true
		}
	}
	return latest, found
}
