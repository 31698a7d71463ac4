package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Manifest describes an archive's contents.
type Manifest struct {
	App        string         `json:"app"`
	Version    int            `json:"version"`
	ExportedAt string         `json:"exported_at"`
	Counts     map[string]int `json:"counts"`
	Files      []string       `json:"files"`
}

// ArchiveName is the suggested file name for a backup taken at t.
func ArchiveName(t time.Time) string {
	return "PlantitBackup-" + t.UTC().Format("2006-01-02T150405Z") + ".zip"
}

// WriteArchive writes a zip holding manifest.json, data.json and one CSV
// per entity.
func (b *Bundle) WriteArchive(w io.Writer) error {
	docs := b.Documents()
	files := make([]string, 0, len(docs)+1)
	files = append(files, "data.json")
	for _, d := range docs {
		files = append(files, d.Filename)
	}

	zw := zip.NewWriter(w)
	if err := writeJSONEntry(zw, "manifest.json", Manifest{
		App:        "plantit",
		Version:    b.Version,
		ExportedAt: b.ExportedAt,
		Counts:     b.Counts(),
		Files:      files,
	}); err != nil {
		return err
	}
	if err := writeJSONEntry(zw, "data.json", b); err != nil {
		return err
	}
	for _, d := range docs {
		f, err := zw.Create(d.Filename)
		if err != nil {
			return fmt.Errorf("archive %s: %w", d.Filename, err)
		}
		if _, err := io.WriteString(f, d.Contents); err != nil {
			return fmt.Errorf("archive %s: %w", d.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func writeJSONEntry(zw *zip.Writer, name string, v any) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	return nil
}
