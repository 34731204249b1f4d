package playlist

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// mockCatalog はテスト用のTrackCatalog。
type mockCatalog struct {
	searchFn func(ctx context.Context, accessToken, query string) (string, error)
}

func (m *mockCatalog) SearchTrack(ctx context.Context, accessToken, query string) (string, error) {
	return m.searchFn(ctx, accessToken, query)
}

// 応答順が入れ替わっても結果は入力順を維持すること
func TestResolver_PreservesOrderUnderRandomLatency(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, q string) (string, error) {
			time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			return "uri:" + q, nil
		},
	}
	var buf bytes.Buffer
	r := NewResolver(catalog, newTestLogger(&buf), 0)

	queries := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	got := r.Resolve(context.Background(), "tok", queries)

	if len(got) != len(queries) {
		t.Fatalf("len = %d, want %d", len(got), len(queries))
	}
	for i, q := range queries {
		if got[i].Query != q || got[i].URI != "uri:"+q {
			t.Errorf("got[%d] = %+v, want query %q", i, got[i], q)
		}
	}
}

// 個々の検索失敗はバッチを中断せず、未解決として扱われること
func TestResolver_FailureBecomesUnmatched(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, q string) (string, error) {
			switch q {
			case "boom":
				return "", errors.New("rate limited")
			case "none":
				return "", nil
			}
			return "uri:" + q, nil
		},
	}
	var buf bytes.Buffer
	r := NewResolver(catalog, newTestLogger(&buf), 0)

	got := r.Resolve(context.Background(), "tok", []string{"one", "boom", "none", "two"})

	if !got[0].Matched() || !got[3].Matched() {
		t.Errorf("successful lookups should be matched: %+v", got)
	}
	if got[1].Matched() || got[2].Matched() {
		t.Errorf("failed and empty lookups should be unmatched: %+v", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte("track lookup failed")) {
		t.Error("lookup failure should be logged")
	}
}

func TestResolver_EmptyInput(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(context.Context, string, string) (string, error) {
			t.Error("catalog must not be called")
			return "", nil
		},
	}
	var buf bytes.Buffer
	got := NewResolver(catalog, newTestLogger(&buf), 0).Resolve(context.Background(), "tok", nil)
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestResolver_RespectsConcurrencyLimit(t *testing.T) {
	var current, peak int32
	var mu sync.Mutex
	catalog := &mockCatalog{
		searchFn: func(context.Context, string, string) (string, error) {
			n := atomic.AddInt32(&current, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return "uri", nil
		},
	}
	var buf bytes.Buffer
	r := NewResolver(catalog, newTestLogger(&buf), 2)

	r.Resolve(context.Background(), "tok", make([]string, 10))

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}
