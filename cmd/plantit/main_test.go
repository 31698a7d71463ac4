package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t   *testing.T
	cfg string
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "plantit.yaml")
	body := "storage:\n  driver: file\n  path: " + filepath.Join(dir, "garden.json") + "\n" +
		"calendar:\n  timezone: UTC\n" +
		"reminders:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return &cli{t: t, cfg: cfg, dir: dir}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), append([]string{"--config", c.cfg, "--log-level", "error"}, args...), &out)
	return out.String(), err
}

func (c *cli) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "plantit %s", strings.Join(args, " "))
	return out
}

var uuidRe = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func TestCLI_PlantLifecycle(t *testing.T) {
	c := newCLI(t)

	assert.Contains(t, c.must("village", "add", "Balcony", "--climate", "arid"), `Created village "Balcony"`)
	_, err := c.run("village", "add", "Attic", "--climate", "lunar")
	assert.ErrorContains(t, err, "unknown climate")

	out := c.must("plant", "add", "Fern", "--species", "Nephrolepis", "--village", "balcony", "--water-every", "3")
	assert.Contains(t, out, `Created plant "Fern"`)

	out = c.must("plant", "list", "--village", "Balcony")
	assert.Contains(t, out, "Fern")
	assert.Contains(t, out, "Nephrolepis")

	assert.Contains(t, c.must("plant", "water", "fern"), "Fern: Watered at ")
	assert.Contains(t, c.must("plant", "note", "Fern", "new", "frond"), "Fern: Note at ")
	assert.Contains(t, c.must("plant", "photo", "Fern", "--caption", "spring"), "Added photo")

	out = c.must("plant", "show", "Fern")
	assert.Contains(t, out, "Village:      Balcony (Arid)")
	assert.Contains(t, out, "Every 3 days")
	assert.Contains(t, out, "Note: new frond")
	assert.Contains(t, out, "[leaf] spring")

	out = c.must("schedule", "upcoming", "--within", "100h")
	assert.Contains(t, out, "Fern")
	id := uuidRe.FindString(strings.SplitN(out, "\n", 2)[1])
	require.NotEmpty(t, id)

	assert.Contains(t, c.must("schedule", "snooze", id, "--for", "2h"), "Snoozed. Next due ")
	assert.Contains(t, c.must("schedule", "complete", id), "Done. Next due ")

	out = c.must("schedule", "add", "Fern", "--kind", "fertilizing", "--cadence", "dayofmonth", "--day", "31")
	assert.Contains(t, out, "Monthly on the 31st")

	assert.Contains(t, c.must("village", "rename", "Balcony", "Terrace"), `"Terrace"`)
	assert.Contains(t, c.must("village", "delete", "Terrace"), "Deleted village")
	assert.NotContains(t, c.must("plant", "show", "Fern"), "Village:")

	assert.Contains(t, c.must("schedule", "delete", id), "Deleted schedule")
	assert.Contains(t, c.must("plant", "delete", "Fern"), `Deleted plant "Fern"`)
	_, err = c.run("plant", "show", "Fern")
	assert.Error(t, err)
}

func TestCLI_Preview(t *testing.T) {
	c := newCLI(t)
	out := c.must("schedule", "preview", "--cadence", "everyNDays", "--every", "2", "-n", "3")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Every 2 days", lines[0])

	_, err := c.run("schedule", "preview", "--cadence", "fortnightly")
	assert.ErrorContains(t, err, "unknown cadence")
}

func TestCLI_ImportAndExport(t *testing.T) {
	c := newCLI(t)

	legacyFile := filepath.Join(c.dir, "monstera.json")
	require.NoError(t, os.WriteFile(legacyFile, []byte(`{
		"plant": {"name": "Monstera", "village": {"name": "Porch", "climate": "tropical"}, "potSize": 12},
		"activities": [{"kind": "watered", "createdAt": "2024-05-20T08:00:00Z"}],
		"schedules": [{"type": "watering", "frequency": 5}]
	}`), 0o644))

	out := c.must("import", legacyFile, "--dry-run")
	assert.Contains(t, out, "Plant:      Monstera")
	assert.Contains(t, out, "Unrecognised fields: 1")
	assert.Contains(t, out, "plant: potSize=12")
	assert.NotContains(t, c.must("plant", "list"), "Monstera")

	out = c.must("import", legacyFile)
	assert.Contains(t, out, `Imported "Monstera" with 1 activities and 1 schedules (created village "Porch")`)

	out = c.must("export")
	assert.Contains(t, out, `"name": "Monstera"`)
	assert.Contains(t, out, `"village_name": "Porch"`)

	csvDir := filepath.Join(c.dir, "csv")
	out = c.must("export", "--format", "csv", "--out", csvDir)
	assert.Contains(t, out, filepath.Join(csvDir, "plants.csv"))
	raw, err := os.ReadFile(filepath.Join(csvDir, "activities.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), ",water,,2024-05-20T08:00:00Z\n")

	archive := filepath.Join(c.dir, "backup.zip")
	c.must("export", "--format", "zip", "--out", archive)
	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer zr.Close()
	assert.Equal(t, "manifest.json", zr.File[0].Name)

	_, err = c.run("export", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}
