package redis

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

func testClient(t *testing.T) *Lock {
	t.Helper()
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := Dial(context.Background(), Config{Addr: addr}, logger.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLock(rdb, logger.Nop())
}

func TestLockExcludesSecondHolder(t *testing.T) {
	l := testClient(t)
	l.wait = 300 * time.Millisecond
	l.retry = 50 * time.Millisecond
	ctx := context.Background()
	key := "test:lock:" + uuid.NewString()

	unlock, err := l.Lock(ctx, key, 10*time.Second)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := l.Lock(ctx, key, 10*time.Second); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second lock: want ErrLockHeld, got %v", err)
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	unlock, err = l.Lock(ctx, key, 10*time.Second)
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	_ = unlock(ctx)
}

func TestLockRenewsWhileHeld(t *testing.T) {
	l := testClient(t)
	ctx := context.Background()
	key := "test:lock:" + uuid.NewString()

	unlock, err := l.Lock(ctx, key, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	time.Sleep(900 * time.Millisecond)
	if n, err := l.rdb.Exists(ctx, key).Result(); err != nil || n != 1 {
		t.Fatalf("key expired while held: exists=%d err=%v", n, err)
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if n, _ := l.rdb.Exists(ctx, key).Result(); n != 0 {
		t.Fatalf("key survived release")
	}
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	l := testClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPublisher(l.rdb, "test:views:"+uuid.NewString(), logger.Nop())

	got := make(chan []byte, 1)
	if err := p.Subscribe(ctx, func(payload []byte) { got <- payload }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := p.Publish(ctx, map[string]string{"view": "census_observation_view"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case payload := <-got:
		if want := `{"view":"census_observation_view"}`; string(payload) != want {
			t.Fatalf("payload=%s want %s", payload, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no event received")
	}
}

func TestSubscribeRequiresCallback(t *testing.T) {
	p := NewPublisher(nil, "", logger.Nop())
	if err := p.Subscribe(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
	if p.Channel() != "biositing.views" {
		t.Fatalf("default channel=%q", p.Channel())
	}
}

func TestReleaseLeavesForeignToken(t *testing.T) {
	l := testClient(t)
	ctx := context.Background()
	key := "test:lock:" + uuid.NewString()

	if err := l.rdb.Set(ctx, key, "someone-else", time.Minute).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() { _ = l.rdb.Del(context.Background(), key).Err() })
	if err := l.release(ctx, key, "mine"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got, _ := l.rdb.Get(ctx, key).Result(); got != "someone-else" {
		t.Fatalf("foreign lock removed, value now %q", got)
	}
}

func TestDialRequiresAddr(t *testing.T) {
	if _, err := Dial(context.Background(), Config{}, logger.Nop()); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	if (Config{Addr: " "}).Enabled() {
		t.Fatalf("blank addr should be disabled")
	}
}

func TestLockNilClient(t *testing.T) {
	var l *Lock
	if _, err := l.Lock(context.Background(), "k", time.Second); err == nil {
		t.Fatalf("expected error from nil lock")
	}
}
