package datamodel

import (
	"path/filepath"
	"time"
)

// KnownStatus is the hash-set classification of a file's content.
type KnownStatus int

const (
	// KnownUnknown means the file's hash matched no reference set.
	KnownUnknown KnownStatus = iota
	// Known means the hash matched a known-benign reference set (e.g. NSRL).
	Known
	// KnownBad means the hash matched a notable/known-bad reference set.
	KnownBad
)

func (k KnownStatus) String() string {
	switch k {
	case Known:
		return "known"
	case KnownBad:
		return "known_bad"
	default:
		return "unknown"
	}
}

// ParseKnownStatus maps a stored status string back to a KnownStatus.
// Unrecognized values are treated as unknown.
func ParseKnownStatus(s string) KnownStatus {
	switch s {
	case "known":
		return Known
	case "known_bad":
		return KnownBad
	default:
		return KnownUnknown
	}
}

// Case is an open investigation. Directories are absolute paths created
// when the case is opened for the first time.
type Case struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Directory string    `json:"directory"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfigDirectory is where per-case settings files live.
func (c *Case) ConfigDirectory() string {
	return filepath.Join(c.Directory, "config")
}

// ModuleDirectory is the root for per-module output folders.
func (c *Case) ModuleDirectory() string {
	return filepath.Join(c.Directory, "ModuleOutput")
}

// DataSource is a unit of evidence (disk image, logical folder) added to a case.
type DataSource struct {
	ID     int64  `json:"id"`
	CaseID string `json:"case_id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

// File is one cataloged file from a data source.
type File struct {
	ObjID        int64       `json:"obj_id"`
	DataSourceID int64       `json:"data_source_id"`
	Name         string      `json:"name"`
	Path         string      `json:"path"`
	MIMEType     string      `json:"mime_type"`
	Size         int64       `json:"size"`
	Known        KnownStatus `json:"known"`
	IsDir        bool        `json:"is_dir"`
	SHA256       string      `json:"sha256,omitempty"`
}

// ArtifactType identifies the kind of analysis result attached to a file.
type ArtifactType int

const (
	ArtifactOther ArtifactType = iota
	ArtifactEXIFMetadata
	ArtifactHashSetHit
)

func (a ArtifactType) String() string {
	switch a {
	case ArtifactEXIFMetadata:
		return "exif_metadata"
	case ArtifactHashSetHit:
		return "hashset_hit"
	default:
		return "other"
	}
}

// Artifact is an analysis result row attached to a file object.
type Artifact struct {
	ID    int64        `json:"id"`
	Type  ArtifactType `json:"type"`
	ObjID int64        `json:"obj_id"`
}

// Tag is a user-applied label on a file object.
type Tag struct {
	Name  string `json:"name"`
	ObjID int64  `json:"obj_id"`
}
