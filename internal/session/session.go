package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/drivr/internal/errs"
	"github.com/loykin/drivr/internal/statefile"
)

// RecordName is the file holding the shared session id inside the state dir.
const RecordName = "session-id.txt"

// ErrEmptyID is returned when asked to save a blank session id. Nothing is recorded.
var ErrEmptyID = errors.New("session: empty session id")

// Store is the shared record of the browser session every client should adopt.
type Store struct {
	file *statefile.File[string]
}

func New(path string, timeout time.Duration) *Store {
	return &Store{file: statefile.New(path, statefile.String, timeout)}
}

// InDir returns the store kept in dir under RecordName.
func InDir(dir string, timeout time.Duration) *Store {
	return New(filepath.Join(dir, RecordName), timeout)
}

func (s *Store) Path() string { return s.file.Path() }

// Read returns the recorded session id; ok is false when none is recorded.
func (s *Store) Read(ctx context.Context) (string, bool, error) {
	id, ok, err := s.file.Read(ctx)
	if err != nil || !ok || id == "" {
		return "", false, err
	}
	return id, true, nil
}

// Save records id. Saving the id already recorded is a no-op; a different recorded id
// is a conflict and the record is left unchanged.
func (s *Store) Save(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyID
	}
	return s.file.Update(ctx, func(tx *statefile.Tx[string]) error {
		cur, ok, err := tx.Read()
		if err != nil {
			return err
		}
		if ok && cur != "" {
			if cur == id {
				return nil
			}
			return errs.Conflict("session.save", "recorded %q, proposed %q", cur, id)
		}
		return tx.Write(id)
	})
}

// Replace overwrites whatever is recorded with id in a single lock acquisition.
func (s *Store) Replace(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.Clear(ctx)
	}
	return s.file.Write(ctx, id)
}

// Clear removes the record. Clearing when nothing is recorded succeeds.
func (s *Store) Clear(ctx context.Context) error {
	return s.file.Clear(ctx)
}
