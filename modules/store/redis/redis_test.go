package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/core"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewStore(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_SetUsesPrefixedKeyAndTTL(t *testing.T) {
	t.Parallel()
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "abc", []byte(`{"session_id":"abc"}`), 30*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := mr.Get("conversation:abc")
	if err != nil {
		t.Fatalf("key not written: %v", err)
	}
	if got != `{"session_id":"abc"}` {
		t.Errorf("value = %s", got)
	}
	if ttl := mr.TTL("conversation:abc"); ttl != 30*time.Minute {
		t.Errorf("TTL = %v, want 30m", ttl)
	}
}

func TestStore_GetMissAndExpiry(t *testing.T) {
	t.Parallel()
	s, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, conversation.ErrNotFound) {
		t.Fatalf("Get(missing) err = %v", err)
	}

	_ = s.Set(ctx, "abc", []byte("x"), time.Minute)
	if b, err := s.Get(ctx, "abc"); err != nil || string(b) != "x" {
		t.Fatalf("Get = %q, %v", b, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, "abc"); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("Get after expiry err = %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	s, mr := newTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "abc", []byte("x"), time.Minute)
	if err := s.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("conversation:abc") {
		t.Error("key still present after Delete")
	}
	if err := s.Delete(ctx, "abc"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}
}

func TestStore_Unreachable(t *testing.T) {
	t.Parallel()
	s, mr := newTestStore(t)
	mr.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err == nil {
		t.Error("Ping should fail when the server is gone")
	}
	if _, err := s.Get(ctx, "abc"); err == nil || errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("Get err = %v, want a transport error", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"rediss", Config{URL: "rediss://user:pw@host:6380/1"}, false},
		{"bad scheme", Config{URL: "http://localhost"}, true},
		{"bad timeout", Config{Timeout: "soon"}, true},
		{"negative pool", Config{PoolSize: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.defaults()
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModule_Provision(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	appCtx := core.NewAppContext(nil, t.TempDir())

	m := &Module{config: Config{URL: "redis://" + mr.Addr(), KeyPrefix: "sage:"}}
	if err := m.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	svc, ok := appCtx.Service(conversation.BackendService)
	if !ok {
		t.Fatal("backend not registered")
	}
	if err := svc.(conversation.Backend).Set(context.Background(), "x", []byte("1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("sage:x") {
		t.Error("custom key prefix not applied")
	}
}
