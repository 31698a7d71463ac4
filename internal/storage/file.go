package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "plantit/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.data.json   (full graph snapshot, rewritten on every Save)
//   - <prefix>.audit.jsonl (append-only JSON Lines)
//   - <prefix>.dedup.json  (notifier dedup snapshot)
//
// Snapshots are written to a temp file and renamed into place, so a crash
// mid-write leaves the previous snapshot intact.
type fileStore struct {
	*memStore

	log logx.Logger

	dataPath  string
	dedupPath string

	auditMu   sync.Mutex
	auditFile *os.File
}

type fileSnapshot struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Graph   *graph    `json:"graph"`
}

const snapshotVersion = 1

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{
		memStore:  newMemStore(),
		log:       log,
		dataPath:  prefix + ".data.json",
		dedupPath: prefix + ".dedup.json",
	}

	g, err := loadSnapshot(st.dataPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", st.dataPath, err)
	}
	st.g = g

	if err := loadJSON(st.dedupPath, &st.dedup); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("dedup snapshot unreadable; starting empty", logx.String("path", st.dedupPath), logx.Err(err))
	}
	if st.dedup == nil {
		st.dedup = map[string]int64{}
	}
	pruneExpiredDedup(st.dedup, time.Now())

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st.auditFile = af

	st.commit = func(next *graph) error {
		return writeJSONAtomic(st.dataPath, fileSnapshot{Version: snapshotVersion, SavedAt: time.Now().UTC(), Graph: next})
	}
	return st, nil
}

func loadSnapshot(path string) (*graph, error) {
	snap := fileSnapshot{Graph: newGraph()}
	if err := loadJSON(path, &snap); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newGraph(), nil
		}
		return nil, err
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, snapshotVersion)
	}
	if snap.Graph == nil {
		snap.Graph = newGraph()
	}
	snap.Graph.ensure()
	return snap.Graph, nil
}

func loadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

func writeJSONAtomic(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.dedup[key] = until.UnixMilli()
	pruneExpiredDedup(s.dedup, time.Now())
	return writeJSONAtomic(s.dedupPath, s.dedup)
}

func (s *fileStore) Close() error {
	_ = s.memStore.Close()
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}
