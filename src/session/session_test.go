package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"kokoro/src/chain"
	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test", ttl), mr
}

func TestStores(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(time.Hour) },
		"redis": func(t *testing.T) Store {
			s, _ := newRedisStore(t, time.Hour)
			return s
		},
	}

	for name, open := range stores {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := open(t)
			ctx := context.Background()

			sess := &Session{
				ID:        "session_1",
				Character: personality.Character{Name: "Aoi", PersonalityTraits: []string{"shy"}},
				StartedAt: time.Unix(1700000000, 0).UTC(),
			}
			if err := store.Create(ctx, sess); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			sess.History = append(sess.History, personality.Turn{Role: personality.RoleUser, Content: "hi"})
			sess.TotalMessages = 1
			if err := store.Update(ctx, sess); err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			got, err := store.Get(ctx, "session_1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Character.Name != "Aoi" || len(got.History) != 1 || got.TotalMessages != 1 {
				t.Errorf("session = %+v", got)
			}
			if !got.StartedAt.Equal(sess.StartedAt) {
				t.Errorf("started_at = %v", got.StartedAt)
			}

			if err := store.Delete(ctx, "session_1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(ctx, "session_1"); !errors.Is(err, kerrors.ErrSessionNotFound) {
				t.Errorf("Get() after delete error = %v", err)
			}
			if err := store.Update(ctx, sess); !errors.Is(err, kerrors.ErrSessionNotFound) {
				t.Errorf("Update() of missing session error = %v", err)
			}
			if err := store.Delete(ctx, "session_1"); !errors.Is(err, kerrors.ErrSessionNotFound) {
				t.Errorf("Delete() of missing session error = %v", err)
			}
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	store.Create(ctx, &Session{ID: "s"})

	now = now.Add(59 * time.Second)
	if _, err := store.Get(ctx, "s"); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}
	now = now.Add(time.Second)
	if _, err := store.Get(ctx, "s"); !errors.Is(err, kerrors.ErrSessionNotFound) {
		t.Errorf("Get() after expiry error = %v", err)
	}
}

func TestMemoryStoreReapsExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Create(ctx, &Session{ID: "abandoned"})
	store.Create(ctx, &Session{ID: "stale"})
	now = now.Add(time.Minute)

	if err := store.Update(ctx, &Session{ID: "stale"}); !errors.Is(err, kerrors.ErrSessionNotFound) {
		t.Errorf("Update() on expired session error = %v", err)
	}
	if _, err := store.Get(ctx, "stale"); !errors.Is(err, kerrors.ErrSessionNotFound) {
		t.Errorf("expired session came back after Update: %v", err)
	}

	store.Create(ctx, &Session{ID: "fresh"})
	if n := len(store.sessions); n != 1 {
		t.Errorf("sessions after Create = %d, want 1", n)
	}

}

func TestRedisStoreExpiry(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()
	if err := store.Create(ctx, &Session{ID: "s"}); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("test:session:s"); ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}
	if err := store.Create(ctx, &Session{ID: "s"}); err == nil {
		t.Error("duplicate Create() should fail")
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "s"); !errors.Is(err, kerrors.ErrSessionNotFound) {
		t.Errorf("Get() after expiry error = %v", err)
	}
}

type echoGenerator struct {
	mu       sync.Mutex
	requests []chain.Request
}

func (g *echoGenerator) Generate(_ context.Context, req chain.Request) chain.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return chain.Envelope{Success: true, Response: "echo: " + req.Message, ModelUsed: "echo"}
}

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()

	gen := &echoGenerator{}
	svc := NewService(NewMemoryStore(0), gen, nil)
	start := time.Unix(1700000000, 0)
	now := start
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	started, err := svc.Start(ctx, personality.Character{Name: "Aoi"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !strings.HasPrefix(started.SessionID, "session_") || !strings.Contains(started.InitialMessage, "Aoi") {
		t.Errorf("started = %+v", started)
	}

	for _, msg := range []string{"hi", "how are you?"} {
		env, err := svc.Send(ctx, started.SessionID, msg)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if env.Response != "echo: "+msg {
			t.Errorf("response = %q", env.Response)
		}
	}

	if got := gen.requests[1].History; len(got) != 2 || got[0].Content != "hi" || got[1].Content != "echo: hi" {
		t.Errorf("second turn history = %+v", got)
	}

	now = start.Add(90 * time.Second)
	ended, err := svc.End(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.DurationSeconds != 90 || ended.TotalMessages != 4 {
		t.Errorf("ended = %+v", ended)
	}

	if _, err := svc.Send(ctx, started.SessionID, "still there?"); !errors.Is(err, kerrors.ErrSessionNotFound) {
		t.Errorf("Send() after end error = %v", err)
	}
}

func TestServiceValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(NewMemoryStore(0), &echoGenerator{}, nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, personality.Character{}); !errors.Is(err, kerrors.ErrInvalidInput) {
		t.Errorf("Start() error = %v", err)
	}
	if _, err := svc.Send(ctx, "missing", ""); !errors.Is(err, kerrors.ErrInvalidInput) {
		t.Errorf("Send() empty message error = %v", err)
	}
	if _, err := svc.Send(ctx, "missing", "hi"); !errors.Is(err, kerrors.ErrSessionNotFound) {
		t.Errorf("Send() missing session error = %v", err)
	}
}

func TestServiceCapsHistory(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(0)
	svc := NewService(store, &echoGenerator{}, nil)
	svc.historyLimit = 4
	ctx := context.Background()

	started, _ := svc.Start(ctx, personality.Character{Name: "Aoi"})
	for i := 0; i < 5; i++ {
		svc.Send(ctx, started.SessionID, "turn")
	}
	sess, _ := store.Get(ctx, started.SessionID)
	if len(sess.History) != 4 || sess.TotalMessages != 10 {
		t.Errorf("history = %d turns, total = %d", len(sess.History), sess.TotalMessages)
	}
}

func TestServiceWindowsGeneratorHistory(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(0)
	gen := &echoGenerator{}
	svc := NewService(store, gen, nil)
	ctx := context.Background()

	started, _ := svc.Start(ctx, personality.Character{Name: "Aoi"})
	for i := 0; i < 12; i++ {
		if _, err := svc.Send(ctx, started.SessionID, "turn"); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	longest := 0
	for _, req := range gen.requests {
		if len(req.History) > longest {
			longest = len(req.History)
		}
	}
	if longest != DefaultHistoryWindow {
		t.Errorf("longest generator history = %d turns, want %d", longest, DefaultHistoryWindow)
	}
	sess, _ := store.Get(ctx, started.SessionID)
	if len(sess.History) != DefaultHistoryLimit {
		t.Errorf("stored history = %d turns, want %d", len(sess.History), DefaultHistoryLimit)
	}
}
