// Package metadata writes a JSON manifest describing a downloaded
// collection next to its images.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fvdownloader/pkg/models"
)

// FileName is the manifest's name inside an album directory
const FileName = "collection.json"

// Manifest describes one download run of a collection
type Manifest struct {
	URL           string                  `json:"url"`
	Designer      string                  `json:"designer"`
	Gender        string                  `json:"gender"`
	Season        string                  `json:"season"`
	Album         string                  `json:"album"`
	DeclaredTotal int                     `json:"declared_total,omitempty"`
	Status        models.CollectionStatus `json:"status"`
	Succeeded     int                     `json:"succeeded"`
	Failed        int                     `json:"failed"`
	DownloadedAt  time.Time               `json:"downloaded_at"`
	Images        []Image                 `json:"images"`
}

// Image is one record of the manifest
type Image struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	// File is relative to the album directory, empty when nothing was written
	File  string `json:"file,omitempty"`
	Bytes int64  `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

// Writer stores a file atomically
type Writer interface {
	Save(ctx context.Context, path string, write func(io.Writer) error) (int64, error)
}

// FromSummary builds the manifest of a finished collection
func FromSummary(sum models.CollectionSummary, outcomes []models.Outcome) *Manifest {
	m := &Manifest{
		URL:           sum.Request.URL,
		Designer:      sum.Info.Designer,
		Gender:        sum.Info.Gender,
		Season:        sum.Info.Season,
		Album:         sum.Info.Album,
		DeclaredTotal: sum.Info.DeclaredTotal,
		Status:        sum.Status,
		Succeeded:     sum.Succeeded,
		Failed:        sum.Failed,
		DownloadedAt:  time.Now().UTC(),
		Images:        make([]Image, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		img := Image{
			Index:  o.Record.SequenceIndex,
			Source: o.Record.SourceURL,
		}
		switch {
		case o.Succeeded():
			img.File = filepath.Base(o.Path)
			img.Bytes = o.Bytes
		case o.Err != nil:
			img.Error = o.Err.Error()
		default:
			img.Error = "skipped"
		}
		m.Images = append(m.Images, img)
	}
	return m
}

// Save writes m as FileName inside dir and returns the path written
func (m *Manifest) Save(ctx context.Context, w Writer, dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	_, err := w.Save(ctx, path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Load reads the manifest stored in dir
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Exists reports whether dir holds a manifest
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}
