package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/etnz/loandash"
)

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(loandash.Session{}),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "ldash", "session.json"), nil),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if got := s.Get(); got != (loandash.Session{}) || got.Authenticated() {
				t.Errorf("Get() = %+v on a new store, want empty", got)
			}

			if err := s.Set("tok", "u1", "a@b.c"); err != nil {
				t.Fatalf("Set() failed: %v", err)
			}
			want := loandash.Session{Token: "tok", UserID: "u1", Email: "a@b.c"}
			if got := s.Get(); got != want || !got.Authenticated() {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}

			// Set replaces every field
			if err := s.Set("tok2", "", ""); err != nil {
				t.Fatalf("Set() failed: %v", err)
			}
			if got := s.Get(); got != (loandash.Session{Token: "tok2"}) {
				t.Errorf("Get() = %+v, want only the token", got)
			}

			if err := s.Clear(); err != nil {
				t.Fatalf("Clear() failed: %v", err)
			}
			if got := s.Get(); got != (loandash.Session{}) {
				t.Errorf("Get() = %+v after Clear(), want empty", got)
			}
			if err := s.Clear(); err != nil {
				t.Errorf("second Clear() failed: %v", err)
			}
		})
	}
}

func TestFileStore_SharedBetweenInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	a := NewFileStore(path, nil)
	b := NewFileStore(path, nil)

	if err := a.Set("tok", "u1", "a@b.c"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if got := b.Get().Token; got != "tok" {
		t.Errorf("other instance token = %q, want tok", got)
	}

	if err := b.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if got := a.Get(); got != (loandash.Session{}) {
		t.Errorf("Get() = %+v after the other instance cleared, want empty", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file still there: %v", err)
	}
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path, nil)
	if err := s.Set("tok", "u1", "a@b.c"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("permissions = %v, want -rw-------", got)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path, nil)
	if got := s.Get(); got != (loandash.Session{}) {
		t.Errorf("Get() = %+v on a corrupt file, want empty", got)
	}
}

// A reader running alongside writers and clearers only ever sees a complete
// session or the empty one.
func TestFileStore_NoPartialSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	writer := NewFileStore(path, nil)
	reader := NewFileStore(path, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = writer.Set("tok", "u1", "a@b.c")
			_ = writer.Clear()
		}
	}()
	want := loandash.Session{Token: "tok", UserID: "u1", Email: "a@b.c"}
	for i := 0; i < 200; i++ {
		if got := reader.Get(); got != (loandash.Session{}) && got != want {
			t.Errorf("Get() = %+v, want a complete session or none", got)
		}
	}
	wg.Wait()
}
