package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	applogger "github.com/arg-foo/zaza-sub000/pkg/logger"
)

const (
	recordExt     = ".json"
	tempPrefix    = ".tmp-"
	archiveDir    = "archive"
	readAttempts  = 3
	readRetryWait = 20 * time.Millisecond
)

// PredictionFileStore keeps one indented JSON file per prediction record, named by its key.
// Creation is no-clobber (temp file, fsync, hard link) and replacement is temp file plus
// rename, so readers only ever observe complete records.
type PredictionFileStore struct {
	dir string
	l   *applogger.Logger
	mu  sync.Mutex
}

func NewPredictionFileStore(dir string) (*PredictionFileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("prediction store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prediction store: %w", err)
	}
	return &PredictionFileStore{dir: dir}, nil
}

// SetLogger injects a structured logger.
func (s *PredictionFileStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *PredictionFileStore) Dir() string { return s.dir }

// path maps a record key to its file. Keys that would resolve outside the store
// directory are refused.
func (s *PredictionFileStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("prediction key %q: %w", key, models.ErrInvalidParameter)
	}
	return filepath.Join(s.dir, key+recordExt), nil
}

func (s *PredictionFileStore) Put(ctx context.Context, rec models.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := rec.Key()
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := s.writeTemp(rec)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("put %s: %w", key, models.ErrDuplicatePrediction)
		}
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.l.Info("prediction stored", applogger.String("key", key))
	return nil
}

// Replace writes rec over the stored version. The stored version must be exactly
// rec.Version-1, otherwise ErrStalePrediction is returned and nothing is written.
func (s *PredictionFileStore) Replace(ctx context.Context, rec models.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	cur, err := s.read(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("replace %s: %w", key, models.ErrPredictionNotFound)
		}
		return fmt.Errorf("replace %s: %w", key, err)
	}
	if cur.Version != rec.Version-1 {
		return fmt.Errorf("replace %s (stored v%d, new v%d): %w", key, cur.Version, rec.Version, models.ErrStalePrediction)
	}
	tmp, err := s.writeTemp(rec)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func (s *PredictionFileStore) Get(ctx context.Context, key string) (models.PredictionRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.PredictionRecord{}, err
	}
	p, err := s.path(key)
	if err != nil {
		return models.PredictionRecord{}, err
	}
	rec, err := s.readWithRetry(p)
	if errors.Is(err, fs.ErrNotExist) {
		return rec, fmt.Errorf("get %s: %w", key, models.ErrPredictionNotFound)
	}
	return rec, err
}

// List returns matching records ordered by key. Unreadable files are retried and then skipped.
func (s *PredictionFileStore) List(ctx context.Context, f models.PredictionFilter) ([]models.PredictionRecord, error) {
	names, err := s.recordFiles()
	if err != nil {
		return nil, err
	}
	out := make([]models.PredictionRecord, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.readWithRetry(filepath.Join(s.dir, name))
		if err != nil {
			s.l.Warn("skipping unreadable prediction",
				applogger.String("file", name),
				applogger.Error(err),
			)
			continue
		}
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Archive moves records whose prediction date is before the cutoff into archive/.
func (s *PredictionFileStore) Archive(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.recordFiles()
	if err != nil {
		return 0, err
	}
	cutoff := before.UTC().Format(time.DateOnly)
	dest := filepath.Join(s.dir, archiveDir)
	archived := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		rec, err := s.read(filepath.Join(s.dir, name))
		if err != nil || rec.PredictionDate == "" || rec.PredictionDate >= cutoff {
			continue
		}
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return archived, fmt.Errorf("archive: %w", err)
		}
		if err := os.Rename(filepath.Join(s.dir, name), filepath.Join(dest, name)); err != nil {
			return archived, fmt.Errorf("archive %s: %w", name, err)
		}
		archived++
		s.l.Info("prediction archived", applogger.String("file", name))
	}
	return archived, nil
}

func (s *PredictionFileStore) recordFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) || filepath.Ext(name) != recordExt {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *PredictionFileStore) writeTemp(rec models.PredictionRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prediction: %w", err)
	}
	f, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp: %w", err)
	}
	return name, nil
}

func (s *PredictionFileStore) read(path string) (models.PredictionRecord, error) {
	var rec models.PredictionRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}

// readWithRetry tolerates a file being swapped mid-read; a missing file is not retried.
func (s *PredictionFileStore) readWithRetry(path string) (models.PredictionRecord, error) {
	var (
		rec models.PredictionRecord
		err error
	)
	for attempt := 0; attempt < readAttempts; attempt++ {
		rec, err = s.read(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return rec, err
		}
		time.Sleep(readRetryWait)
	}
	return rec, err
}

var _ domrepo.PredictionStore = (*PredictionFileStore)(nil)
