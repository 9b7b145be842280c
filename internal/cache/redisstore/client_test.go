package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, "k1")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("Get=%q ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := rc.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key ok=%v err=%v", ok, err)
	}
	if n, err := rc.Del(ctx, "k1", "missing"); err != nil || n != 1 {
		t.Fatalf("Del=%d err=%v want 1", n, err)
	}
	if _, ok, _ := rc.Get(ctx, "k1"); ok {
		t.Fatal("k1 should be gone")
	}
}

func TestDelPattern_RemovesOnlyMatches(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for i := range 450 {
		_ = rc.Set(ctx, fmt.Sprintf("geojson:roads:v1:type=%d", i), []byte("x"), time.Minute)
	}
	_ = rc.Set(ctx, "geojson:roads:v1", []byte("full"), time.Minute)
	_ = rc.Set(ctx, "geojson:forests:v1:type=a", []byte("x"), time.Minute)

	n, err := rc.DelPattern(ctx, "geojson:roads:v1:*")
	if err != nil {
		t.Fatalf("DelPattern: %v", err)
	}
	if n != 450 {
		t.Fatalf("deleted=%d want 450", n)
	}
	if !mr.Exists("geojson:roads:v1") || !mr.Exists("geojson:forests:v1:type=a") {
		t.Fatal("non-matching keys must survive")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestNew_FailsWhenUnreachable(t *testing.T) {
	mr, _ := miniredis.Run()
	addr := mr.Addr()
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, addr, WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestIncr_CountsFromZero(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		n, err := rc.Incr(ctx, "geojson:roads:gen")
		if err != nil || n != want {
			t.Fatalf("Incr=%d err=%v want %d", n, err, want)
		}
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc, err := New(context.Background(), mr.Addr(),
		WithPoolSize(32), WithMinIdleConns(0), WithReadTimeout(300*time.Millisecond), WithWriteTimeout(-1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	o := rc.rdb.Options()
	if o.PoolSize != 32 || o.ReadTimeout != 300*time.Millisecond {
		t.Fatalf("options not applied: pool=%d read=%v", o.PoolSize, o.ReadTimeout)
	}
	if o.MinIdleConns != 2 || o.WriteTimeout != time.Second {
		t.Fatalf("zero values should keep defaults: idle=%d write=%v", o.MinIdleConns, o.WriteTimeout)
	}
	if n := len(rc.Collectors()); n != 3 {
		t.Fatalf("collectors=%d want 3", n)
	}
}
