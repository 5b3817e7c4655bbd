package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore wraps a MemoryStore with a JSON file snapshot, so sessions
// survive a process restart. Loaded sessions reference no index; the
// orchestrator reattaches its current snapshot on first use.
type FileStore struct {
	mem  *MemoryStore
	path string
	mu   sync.Mutex
	once sync.Once
	log  *slog.Logger
}

// NewFileStore persists to path ("tmp/sessions.json" style single file).
func NewFileStore(path string, mem *MemoryStore, logger *slog.Logger) *FileStore {
	if mem == nil {
		mem = NewMemoryStore(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{mem: mem, path: path, log: logger.With("component", "session-store")}
}

func (f *FileStore) load() {
	f.once.Do(func() {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return
		}
		var rows []*Session
		if err := json.Unmarshal(data, &rows); err != nil {
			f.log.Warn("ignoring corrupt session file", "path", f.path, "err", err)
			return
		}
		for _, s := range rows {
			if s == nil || s.ID == "" {
				continue
			}
			if !s.State.Valid() {
				f.log.Warn("skipping session with unknown state", "id", s.ID, "state", string(s.State))
				continue
			}
			_ = f.mem.Put(context.Background(), s)
		}
	})
}

func (f *FileStore) persist(ctx context.Context) {
	rows, err := f.mem.List(ctx)
	if err != nil {
		return
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		f.log.Warn("cannot encode sessions", "err", err)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		f.log.Warn("cannot create session dir", "err", err)
		return
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		f.log.Warn("cannot write session file", "err", err)
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		f.log.Warn("cannot replace session file", "err", err)
	}
}

func (f *FileStore) Put(ctx context.Context, s *Session) error {
	f.load()
	if err := f.mem.Put(ctx, s); err != nil {
		return err
	}
	f.persist(ctx)
	return nil
}

func (f *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	f.load()
	return f.mem.Get(ctx, id)
}

func (f *FileStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	f.load()
	s, err := f.mem.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	f.persist(ctx)
	return s, nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	f.load()
	if err := f.mem.Delete(ctx, id); err != nil {
		return err
	}
	f.persist(ctx)
	return nil
}

func (f *FileStore) List(ctx context.Context) ([]*Session, error) {
	f.load()
	return f.mem.List(ctx)
}

var _ Store = (*FileStore)(nil)
