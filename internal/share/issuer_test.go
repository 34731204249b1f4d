package share

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/setlister/internal/model"
)

type mockShareStore struct {
	calls []string
	setFn func(call int, shareID string) (string, error)
}

func (m *mockShareStore) SetShare(_ context.Context, _ int64, shareID string) (string, error) {
	m.calls = append(m.calls, shareID)
	return m.setFn(len(m.calls), shareID)
}

func sequenceGenerator(ids ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		id := ids[i%len(ids)]
		i++
		return id, nil
	}
}

func TestGenerateShareID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := generateShareID()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !isValidShareID(id) {
			t.Fatalf("generated id %q is not valid", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestIsValidShareID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abcDEF012-_x", true},
		{"abc", false},
		{"abcDEF012-_xy", false},
		{"abcDEF012/_x", false},
		{"abcDEF012 _x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isValidShareID(tt.id); got != tt.want {
			t.Errorf("isValidShareID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestIssuer_PersistsFirstCandidate(t *testing.T) {
	store := &mockShareStore{setFn: func(_ int, id string) (string, error) { return id, nil }}
	is := &issuer{store: store, generate: sequenceGenerator("AAAAAAAAAAAA")}

	id, state, err := is.issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "AAAAAAAAAAAA" || state != statePersisted {
		t.Errorf("got (%q, %s), want (AAAAAAAAAAAA, persisted)", id, state)
	}
	if len(store.calls) != 1 {
		t.Errorf("SetShare called %d times, want 1", len(store.calls))
	}
}

func TestIssuer_RegeneratesOnceOnCollision(t *testing.T) {
	store := &mockShareStore{setFn: func(call int, id string) (string, error) {
		if call == 1 {
			return "", model.ErrConflict
		}
		return id, nil
	}}
	is := &issuer{store: store, generate: sequenceGenerator("AAAAAAAAAAAA", "BBBBBBBBBBBB")}

	id, state, err := is.issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "BBBBBBBBBBBB" || state != statePersisted {
		t.Errorf("got (%q, %s), want (BBBBBBBBBBBB, persisted)", id, state)
	}
	if len(store.calls) != 2 {
		t.Errorf("SetShare called %d times, want 2", len(store.calls))
	}
}

func TestIssuer_FailsAfterSecondCollision(t *testing.T) {
	store := &mockShareStore{setFn: func(int, string) (string, error) { return "", model.ErrConflict }}
	is := &issuer{store: store, generate: sequenceGenerator("AAAAAAAAAAAA", "BBBBBBBBBBBB", "CCCCCCCCCCCC")}

	_, state, err := is.issue(context.Background(), 1)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if state != stateFailed {
		t.Errorf("state = %s, want failed", state)
	}
	if len(store.calls) != 2 {
		t.Errorf("SetShare called %d times, want 2", len(store.calls))
	}
}

func TestIssuer_ReturnsExistingIDFromConcurrentWriter(t *testing.T) {
	store := &mockShareStore{setFn: func(int, string) (string, error) { return "ZZZZZZZZZZZZ", nil }}
	is := &issuer{store: store, generate: sequenceGenerator("AAAAAAAAAAAA")}

	id, _, err := is.issue(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ZZZZZZZZZZZZ" {
		t.Errorf("id = %q, want the stored id", id)
	}
}

func TestIssuer_StoreErrorIsNotRetried(t *testing.T) {
	dbErr := errors.New("db down")
	store := &mockShareStore{setFn: func(int, string) (string, error) { return "", dbErr }}
	is := &issuer{store: store, generate: sequenceGenerator("AAAAAAAAAAAA")}

	_, state, err := is.issue(context.Background(), 1)
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected db error, got %v", err)
	}
	if state != stateFailed || len(store.calls) != 1 {
		t.Errorf("state = %s, calls = %d", state, len(store.calls))
	}
}

func TestIssuer_GeneratorError(t *testing.T) {
	store := &mockShareStore{setFn: func(int, string) (string, error) { return "", nil }}
	is := &issuer{store: store, generate: func() (string, error) { return "", errors.New("no entropy") }}

	if _, _, err := is.issue(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
	if len(store.calls) != 0 {
		t.Error("SetShare should not be called")
	}
}
