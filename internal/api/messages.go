package api

import (
	"time"

	"github.com/dmitrijs2005/neurostore/internal/server/models"
)

type PlanUploadRequest struct {
	FileID          string             `json:"file_id,omitempty"`
	Name            string             `json:"name,omitempty"`
	MimeType        string             `json:"mime_type,omitempty"`
	Size            int64              `json:"size"`
	Chunks          models.Descriptors `json:"chunks"`
	CompressionHint string             `json:"compression_hint,omitempty"`
	EncryptionHint  string             `json:"encryption_hint,omitempty"`
}

type PlanUploadResponse struct {
	FileID      string             `json:"file_id"`
	BaseVersion int64              `json:"base_version"`
	Upload      models.Descriptors `json:"upload"`
	Total       int                `json:"total"`
	New         int                `json:"new"`
	Reused      int                `json:"reused"`
	NewBytes    uint64             `json:"new_bytes"`
}

// UploadRequest is one frame of the Upload stream. The first frame carries
// only Header, the last only End.
type UploadRequest struct {
	Header *PlanUploadRequest `json:"header,omitempty"`
	Index  uint64             `json:"index"`
	Hash   string             `json:"hash,omitempty"`
	Data   []byte             `json:"data,omitempty"`
	End    bool               `json:"end,omitempty"`
}

type UploadResponse struct {
	FileID   string `json:"file_id"`
	Version  int64  `json:"version"`
	Size     int64  `json:"size"`
	Received int    `json:"received"`
	Bytes    int64  `json:"bytes"`
}

type DownloadRequest struct {
	FileID  string `json:"file_id"`
	Version int64  `json:"version,omitempty"`
}

type DownloadResponse struct {
	Index uint64 `json:"index"`
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Done  bool   `json:"done,omitempty"`
}

type DescriptorsRequest struct {
	FileID  string `json:"file_id"`
	Version int64  `json:"version,omitempty"`
}

type DescriptorsResponse struct {
	FileID          string             `json:"file_id"`
	Version         int64              `json:"version"`
	Size            int64              `json:"size"`
	Chunks          models.Descriptors `json:"chunks"`
	CompressionHint string             `json:"compression_hint,omitempty"`
	EncryptionHint  string             `json:"encryption_hint,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type FileRequest struct {
	FileID string `json:"file_id"`
}

type VersionsResponse struct {
	Versions []models.VersionRef `json:"versions"`
}

type FileInfo struct {
	ID             string               `json:"id"`
	OwnerID        string               `json:"owner_id"`
	Name           string               `json:"name"`
	Extension      string               `json:"extension,omitempty"`
	Size           int64                `json:"size"`
	MimeType       string               `json:"mime_type,omitempty"`
	IsPublic       bool                 `json:"is_public"`
	CurrentVersion int64                `json:"current_version"`
	AccessList     []models.AccessEntry `json:"access_list,omitempty"`
	Versions       []models.VersionRef  `json:"versions,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// FullName joins name and extension back together.
func (f FileInfo) FullName() string {
	if f.Extension == "" {
		return f.Name
	}
	return f.Name + "." + f.Extension
}

func FileInfoFrom(f *models.File) FileInfo {
	return FileInfo{
		ID:             f.ID,
		OwnerID:        f.OwnerID,
		Name:           f.Name,
		Extension:      f.Extension,
		Size:           f.Size,
		MimeType:       f.MimeType,
		IsPublic:       f.IsPublic,
		CurrentVersion: f.CurrentVersion,
		AccessList:     f.AccessList,
		Versions:       f.Versions,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

func FileInfosFrom(files []*models.File) []FileInfo {
	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, FileInfoFrom(f))
	}
	return out
}

type ListFilesRequest struct{}

type ListFilesResponse struct {
	Files []FileInfo `json:"files"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type RenameRequest struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

type UpdateAccessRequest struct {
	FileID   string               `json:"file_id"`
	IsPublic bool                 `json:"is_public"`
	Entries  []models.AccessEntry `json:"entries"`
}

type Empty struct{}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
