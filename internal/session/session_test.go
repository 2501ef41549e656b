package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/loykin/drivr/internal/errs"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return InDir(t.TempDir(), time.Second)
}

func TestSaveBlankIDIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.Save(ctx, "abc"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, id := range []string{"", "  "} {
		err := s.Save(ctx, id)
		if !errors.Is(err, ErrEmptyID) {
			t.Fatalf("Save(%q) = %v, want ErrEmptyID", id, err)
		}
		if errs.KindOf(err) == errs.KindSessionConflict {
			t.Fatalf("Save(%q) reported a conflict", id)
		}
	}
	if id, ok, _ := s.Read(ctx); !ok || id != "abc" {
		t.Fatalf("record changed to %q ok=%v", id, ok)
	}
}

func TestReadEmpty(t *testing.T) {
	s := newStore(t)
	id, ok, err := s.Read(context.Background())
	if err != nil || ok || id != "" {
		t.Fatalf("id=%q ok=%v err=%v", id, ok, err)
	}
}

func TestSaveConflictRule(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.Save(ctx, "abc"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "abc"); err != nil {
		t.Fatalf("Save same id: %v", err)
	}
	err := s.Save(ctx, "xyz")
	if !errors.Is(err, errs.ErrSessionConflict) {
		t.Fatalf("Save different id = %v", err)
	}
	id, ok, _ := s.Read(ctx)
	if !ok || id != "abc" {
		t.Fatalf("record changed by conflicting save: %q", id)
	}
}

func TestClearThenSave(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear on empty: %v", err)
	}
	_ = s.Save(ctx, "abc")
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Save(ctx, "xyz"); err != nil {
		t.Fatalf("Save after Clear: %v", err)
	}
	if id, _, _ := s.Read(ctx); id != "xyz" {
		t.Fatalf("id = %q", id)
	}
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.Save(ctx, "abc")
	if err := s.Replace(ctx, "xyz"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if id, _, _ := s.Read(ctx); id != "xyz" {
		t.Fatalf("id = %q", id)
	}
	if err := s.Replace(ctx, ""); err != nil {
		t.Fatalf("Replace empty: %v", err)
	}
	if _, ok, _ := s.Read(ctx); ok {
		t.Fatal("record kept after empty Replace")
	}
}

func TestBlankFileIsAbsent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := os.WriteFile(s.Path(), []byte("\n  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Read(ctx); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, "abc"); err != nil {
		t.Fatalf("Save over blank record: %v", err)
	}
}

func TestConcurrentSavesOneWinner(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ids := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	results := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = InDir(dir, 5*time.Second).Save(ctx, id)
		}(i, id)
	}
	wg.Wait()
	winners := 0
	for _, err := range results {
		switch errs.KindOf(err) {
		case errs.KindUnknown:
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			winners++
		case errs.KindSessionConflict:
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d", winners)
	}
}
