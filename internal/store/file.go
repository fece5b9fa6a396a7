package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

// FileStore keeps one indented JSON document per transcript in dir.
type FileStore struct {
	dir string
	mu  sync.RWMutex
	log *logger.Logger
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FileStore{dir: dir, log: log.With("component", "file_store")}, nil
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, id+".json")
}

func (fs *FileStore) Save(ctx context.Context, t *analysis.Transcript) error {
	if t == nil {
		return fmt.Errorf("%w: nil transcript", analysis.ErrInvalidFormat)
	}
	if err := validateID(t.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript %s: %w", t.ID, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.write(t.ID, data)
}

// write replaces the document atomically so readers never see a torn file.
func (fs *FileStore) write(id string, data []byte) error {
	tmp, err := os.CreateTemp(fs.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write transcript %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close transcript %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), fs.path(id)); err != nil {
		return fmt.Errorf("commit transcript %s: %w", id, err)
	}
	return nil
}

func (fs *FileStore) Get(ctx context.Context, id string) (*analysis.Transcript, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.read(fs.path(id))
}

func (fs *FileStore) read(path string) (*analysis.Transcript, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := analysis.DecodeTranscript(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func (fs *FileStore) List(ctx context.Context) ([]*analysis.Transcript, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}

	transcripts := make([]*analysis.Transcript, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		t, err := fs.read(filepath.Join(fs.dir, name))
		if err != nil {
			fs.log.Warn("skipping unreadable transcript", "file", name, "error", err)
			continue
		}
		transcripts = append(transcripts, t)
	}

	sortByUpload(transcripts)
	return transcripts, nil
}

func (fs *FileStore) Rename(ctx context.Context, id, displayName string) (*analysis.Transcript, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	t, err := fs.read(fs.path(id))
	if err != nil {
		return nil, err
	}
	t.DisplayName = displayName

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := fs.write(id, data); err != nil {
		return nil, err
	}
	return t, nil
}

func (fs *FileStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (fs *FileStore) Close() error {
	return nil
}

func sortByUpload(ts []*analysis.Transcript) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].UploadTime.Equal(ts[j].UploadTime) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].UploadTime.Before(ts[j].UploadTime)
	})
}
