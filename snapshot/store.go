// Package snapshot persists the committed application state as flat JSON
// files with two generations and atomic promotion.
//
// A promotion writes the staged file and fsyncs it, relabels current to
// previous, relabels staged to current and fsyncs the directory. Load
// inspects which files survived a crash and restores either the pre- or
// the post-promotion state. The guarantees rely on rename(2) being atomic
// within a directory.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/log"
	"github.com/blockberries/abcistate/value"
)

const (
	CurrentFile  = "state.json"
	PreviousFile = "prev-state.json"
	StagedFile   = "state.json.staged"
)

// Snapshot is one persisted generation of committed state.
type Snapshot struct {
	Height  int64             `json:"height"`
	AppHash []byte            `json:"appHash"`
	State   value.Value       `json:"state"`
	Context abcistate.Context `json:"context"`
}

// Store manages the snapshot files in a single directory.
type Store struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
	// afterDemote runs between the two relabels of a promotion. A non-nil
	// error aborts the promotion at that point.
	afterDemote func() error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates dir if needed and returns a store rooted there.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create snapshot directory %s", dir)
	}
	s := &Store{dir: dir, logger: log.L()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory holding the snapshot files.
func (s *Store) Dir() string { return s.dir }

// Load finishes or reverts any interrupted promotion and returns the
// current snapshot, or nil if none exists.
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recover(); err != nil {
		return nil, err
	}
	return s.read(CurrentFile)
}

// Current reads the current generation without recovering an interrupted
// promotion. Use it for read-only inspection of a live directory.
func (s *Store) Current() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(CurrentFile)
}

// Previous returns the previous generation, or nil if none exists.
func (s *Store) Previous() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(PreviousFile)
}

// Promote durably makes snap the current generation. demoted reports
// whether a prior current generation was relabeled as previous.
func (s *Store) Promote(snap Snapshot) (demoted bool, err error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.path(StagedFile)
	if err := writeSynced(staged, data); err != nil {
		_ = os.Remove(staged)
		return false, err
	}

	hasCurrent, err := s.exists(CurrentFile)
	if err != nil {
		return false, err
	}
	if hasCurrent {
		if err := os.Rename(s.path(CurrentFile), s.path(PreviousFile)); err != nil {
			return false, errors.Wrap(err, "failed to demote current snapshot")
		}
		if err := syncDir(s.dir); err != nil {
			return true, err
		}
		demoted = true
	}
	if s.afterDemote != nil {
		if err := s.afterDemote(); err != nil {
			return demoted, err
		}
	}
	if err := os.Rename(staged, s.path(CurrentFile)); err != nil {
		return demoted, errors.Wrap(err, "failed to promote staged snapshot")
	}
	if err := syncDir(s.dir); err != nil {
		return demoted, err
	}
	return demoted, nil
}

func (s *Store) recover() error {
	hasCurrent, err := s.exists(CurrentFile)
	if err != nil {
		return err
	}
	hasStaged, err := s.exists(StagedFile)
	if err != nil {
		return err
	}

	if hasCurrent {
		if hasStaged {
			s.logger.Info("Dropping stale staged snapshot", zap.String("dir", s.dir))
			if err := os.Remove(s.path(StagedFile)); err != nil {
				return errors.Wrap(err, "failed to remove stale staged snapshot")
			}
		}
		return nil
	}

	if hasStaged {
		// The staged file is only complete if the write reached fsync.
		if _, err := s.read(StagedFile); err == nil {
			s.logger.Warn("Completing interrupted snapshot promotion", zap.String("dir", s.dir))
			if err := os.Rename(s.path(StagedFile), s.path(CurrentFile)); err != nil {
				return errors.Wrap(err, "failed to roll forward staged snapshot")
			}
			return syncDir(s.dir)
		}
		s.logger.Warn("Discarding incomplete staged snapshot", zap.String("dir", s.dir))
		if err := os.Remove(s.path(StagedFile)); err != nil {
			return errors.Wrap(err, "failed to remove incomplete staged snapshot")
		}
	}

	hasPrevious, err := s.exists(PreviousFile)
	if err != nil {
		return err
	}
	if hasPrevious {
		s.logger.Warn("Reverting interrupted snapshot promotion", zap.String("dir", s.dir))
		if err := os.Rename(s.path(PreviousFile), s.path(CurrentFile)); err != nil {
			return errors.Wrap(err, "failed to roll back to previous snapshot")
		}
		return syncDir(s.dir)
	}
	return nil
}

func (s *Store) read(name string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "corrupt snapshot %s", name)
	}
	return &snap, nil
}

func (s *Store) exists(name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %s", name)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create staged snapshot")
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to write staged snapshot")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to sync staged snapshot")
	}
	return errors.Wrap(f.Close(), "failed to close staged snapshot")
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "failed to open snapshot directory")
	}
	defer d.Close()
	return errors.Wrap(d.Sync(), "failed to sync snapshot directory")
}
