package routecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// FileStore keeps one JSON document per route in a directory, for devices
// that must survive restarts without a database.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

type fileEntry struct {
	RouteID string      `json:"routeId"`
	SavedAt time.Time   `json:"savedAt"`
	Route   *tour.Route `json:"route"`
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Get returns the stored entry for routeID.
func (s *FileStore) Get(_ context.Context, routeID string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(routeID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotCached
		}
		return nil, err
	}

	var fe fileEntry
	if err := json.Unmarshal(data, &fe); err != nil {
		return nil, fmt.Errorf("decode cached route %s: %w", routeID, err)
	}
	if fe.Route == nil {
		return nil, ErrNotCached
	}
	return &Entry{RouteID: routeID, Route: fe.Route, SavedAt: fe.SavedAt}, nil
}

// Put writes route atomically by renaming a temp file over the old copy.
func (s *FileStore) Put(_ context.Context, routeID string, route *tour.Route) error {
	data, err := json.Marshal(fileEntry{RouteID: routeID, SavedAt: s.now().UTC(), Route: route})
	if err != nil {
		return fmt.Errorf("encode route %s: %w", routeID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "route-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(routeID))
}

// path maps a route id to a file name; ids are escaped so they cannot leave dir.
func (s *FileStore) path(routeID string) string {
	return filepath.Join(s.dir, "route_"+escapeID(routeID)+".json")
}

func escapeID(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, fmt.Sprintf("%%%02X", c)...)
		}
	}
	return string(out)
}

var _ Store = (*FileStore)(nil)
