// Package replay implements the versioned blob store for match replays
// (spec.md §4.5) and the in-room recorder that assembles them (§4.6).
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Mode selects where replay blobs are written/read.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
	ModeBoth   Mode = "both"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RemoteBackend is the key/value blob interface the remote store talks to
// (an S3-compatible bucket in production, per spec.md §1 — only the call
// surface is consumed here).
type RemoteBackend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]RemoteObject, error)
}

// RemoteObject is one listed blob's key and last-modified time.
type RemoteObject struct {
	Key        string
	ModifiedAt time.Time
}

// Store is the Replay Store described in spec.md §4.5.
type Store struct {
	log    zerolog.Logger
	mode   Mode
	dir    string
	remote RemoteBackend
}

// New returns a Store. dir is the local replay directory; remote may be
// nil when no remote backend is configured (mode must then be "local").
func New(log zerolog.Logger, mode Mode, dir string, remote RemoteBackend) *Store {
	if mode == "" {
		mode = ModeLocal
	}
	return &Store{
		log:    log.With().Str("component", "replay_store").Logger(),
		mode:   mode,
		dir:    dir,
		remote: remote,
	}
}

func sanitizeID(id string) (string, error) {
	if !idPattern.MatchString(id) {
		return "", errors.New("replay: invalid id")
	}
	return id, nil
}

func (s *Store) localPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Write persists data under id. Local writes use tmp-file + atomic rename.
// In "both" mode, remote upload failures are swallowed; in "remote" mode
// they propagate.
func (s *Store) Write(ctx context.Context, id string, data []byte) error {
	id, err := sanitizeID(id)
	if err != nil {
		return err
	}

	if s.mode == ModeLocal || s.mode == ModeBoth {
		if err := s.writeLocal(id, data); err != nil {
			return err
		}
	}

	if s.mode == ModeRemote || s.mode == ModeBoth {
		if s.remote == nil {
			if s.mode == ModeRemote {
				return errors.New("replay: remote backend not configured")
			}
			return nil
		}
		if err := s.remote.Put(ctx, id+".json", data); err != nil {
			if s.mode == ModeRemote {
				return err
			}
			s.log.Warn().Err(err).Str("id", id).Msg("remote replay upload failed, local copy retained")
		}
	}
	return nil
}

func (s *Store) writeLocal(id string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	final := s.localPath(id)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// Read fetches a replay blob, preferring local, falling back to remote
// when enabled.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	id, err := sanitizeID(id)
	if err != nil {
		return nil, err
	}

	if s.mode == ModeLocal || s.mode == ModeBoth {
		data, err := os.ReadFile(s.localPath(id))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if (s.mode == ModeRemote || s.mode == ModeBoth) && s.remote != nil {
		return s.remote.Get(ctx, id+".json")
	}
	return nil, os.ErrNotExist
}

// listEntry is the uniform shape List() returns.
type listEntry struct {
	ID         string
	ModifiedAt time.Time
}

// List returns up to 200 entries ordered by modification time descending.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var entries []listEntry

	if s.mode == ModeLocal || s.mode == ModeBoth {
		files, err := os.ReadDir(s.dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			entries = append(entries, listEntry{
				ID:         trimExt(f.Name()),
				ModifiedAt: info.ModTime(),
			})
		}
	}

	if (s.mode == ModeRemote || s.mode == ModeBoth) && s.remote != nil {
		objs, err := s.remote.List(ctx, "")
		if err != nil {
			if s.mode == ModeRemote {
				return nil, err
			}
			s.log.Warn().Err(err).Msg("remote replay list failed")
		} else {
			seen := make(map[string]bool, len(entries))
			for _, e := range entries {
				seen[e.ID] = true
			}
			for _, o := range objs {
				id := trimExt(o.Key)
				if seen[id] {
					continue
				}
				entries = append(entries, listEntry{ID: id, ModifiedAt: o.ModifiedAt})
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ModifiedAt.After(entries[j].ModifiedAt) })
	if len(entries) > 200 {
		entries = entries[:200]
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// WriteJSON is a convenience wrapper marshalling v before writing.
func (s *Store) WriteJSON(ctx context.Context, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Write(ctx, id, data)
}

// ReadJSON is a convenience wrapper unmarshalling the blob into v.
func (s *Store) ReadJSON(ctx context.Context, id string, v interface{}) error {
	data, err := s.Read(ctx, id)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
