package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CollectionRequest identifies one catalog collection by its listing URL.
// Duplicate requests are allowed and processed independently; Position
// tells them apart.
type CollectionRequest struct {
	URL string `json:"url"`
	// Position is the request's index in the submitted batch
	Position int `json:"position"`
}

// Key identifies one submitted request, unique within a batch
func (r CollectionRequest) Key() string {
	return fmt.Sprintf("%d:%s", r.Position, r.URL)
}

// CollectionInfo is the metadata scraped once from a collection's first page
type CollectionInfo struct {
	Designer string `json:"designer"`
	Gender   string `json:"gender"`
	Season   string `json:"season"`
	Album    string `json:"album"`
	// DeclaredTotal is the image count advertised by the page, 0 when absent
	DeclaredTotal int `json:"declared_total"`
}

func (i CollectionInfo) String() string {
	return fmt.Sprintf("%s / %s / %s / %s", orUnknown(i.Designer), orUnknown(i.Gender), orUnknown(i.Season), orUnknown(i.Album))
}

// ImageRecord is one image to download. Records are immutable once yielded.
type ImageRecord struct {
	Designer      string `json:"designer"`
	Gender        string `json:"gender"`
	Season        string `json:"season"`
	Album         string `json:"album"`
	SourceURL     string `json:"source_url"`
	SequenceIndex int    `json:"sequence_index"`
}

// NewImageRecord stamps info onto a record for sourceURL
func NewImageRecord(info CollectionInfo, sourceURL string, index int) ImageRecord {
	return ImageRecord{
		Designer:      info.Designer,
		Gender:        info.Gender,
		Season:        info.Season,
		Album:         info.Album,
		SourceURL:     sourceURL,
		SequenceIndex: index,
	}
}

// AlbumDir returns <root>/<designer>/<gender>/<season>/<album>
func (r ImageRecord) AlbumDir(root string) string {
	return filepath.Join(root,
		SanitizeComponent(r.Designer),
		SanitizeComponent(r.Gender),
		SanitizeComponent(r.Season),
		SanitizeComponent(r.Album),
	)
}

// TargetPath returns the download target for r with the given file extension
func (r ImageRecord) TargetPath(root, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(r.AlbumDir(root), fmt.Sprintf("%d.%s", r.SequenceIndex, ext))
}

const unknownComponent = "Unknown"

// SanitizeComponent turns scraped text into a single safe path element
func SanitizeComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.Trim(out, ". ")
	if out == "" {
		return unknownComponent
	}
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownComponent
	}
	return s
}

// CollectionStatus is the lifecycle state of one collection job
type CollectionStatus string

const (
	StatusPending         CollectionStatus = "pending"
	StatusPaginating      CollectionStatus = "paginating"
	StatusFetching        CollectionStatus = "fetching"
	StatusDone            CollectionStatus = "done"
	StatusPartiallyFailed CollectionStatus = "partially_failed"
	StatusFailed          CollectionStatus = "failed"
	StatusCancelled       CollectionStatus = "cancelled"
)

// Terminal reports whether no further transitions can happen
func (s CollectionStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusPartiallyFailed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Outcome is the result of fetching a single record
type Outcome struct {
	Record   ImageRecord   `json:"record"`
	Path     string        `json:"path,omitempty"`
	Err      error         `json:"-"`
	Skipped  bool          `json:"skipped,omitempty"`
	Bytes    int64         `json:"bytes,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the record was written to its final path
func (o Outcome) Succeeded() bool {
	return o.Err == nil && !o.Skipped
}

// ProgressState counts finished records for one collection. Completed
// counts every finished attempt, successful or not.
type ProgressState struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// CollectionSummary reports how a collection job ended
type CollectionSummary struct {
	Request   CollectionRequest `json:"request"`
	Info      CollectionInfo    `json:"info"`
	Status    CollectionStatus  `json:"status"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Err       error             `json:"-"`
	Duration  time.Duration     `json:"duration"`
}

// Tally fills the counters and status of s from outcomes. It leaves Err
// and a Failed or Cancelled status set by the caller untouched.
func (s *CollectionSummary) Tally(outcomes []Outcome) {
	s.Total = len(outcomes)
	s.Succeeded, s.Failed, s.Skipped = 0, 0, 0
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			s.Skipped++
		case o.Err != nil:
			s.Failed++
		default:
			s.Succeeded++
		}
	}

	if s.Status == StatusFailed || s.Status == StatusCancelled {
		return
	}
	switch {
	case s.Skipped > 0:
		s.Status = StatusCancelled
	case s.Failed > 0 && s.Succeeded > 0:
		s.Status = StatusPartiallyFailed
	case s.Failed > 0:
		s.Status = StatusFailed
	default:
		s.Status = StatusDone
	}
}
