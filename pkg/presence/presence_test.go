package presence

import (
	"testing"

	"collabd/pkg/cache"
)

func newTest(t *testing.T) *Registry {
	t.Helper()
	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return New(c)
}

func TestBindLookupUnbind(t *testing.T) {
	r := newTest(t)
	prev, err := r.Bind(1, "chan.1.100")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if prev != "" {
		t.Fatalf("expected no previous binding; got %q", prev)
	}
	ch, ok, err := r.Lookup(1)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok || ch != "chan.1.100" {
		t.Fatalf("expected chan.1.100; got %q ok=%v", ch, ok)
	}
	if err := r.Unbind(1, "chan.1.100"); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if _, ok, _ := r.Lookup(1); ok {
		t.Fatalf("expected binding removed")
	}
}

func TestBindReturnsSupersededChannel(t *testing.T) {
	r := newTest(t)
	if _, err := r.Bind(1, "chan.1.100"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	prev, err := r.Bind(1, "chan.1.200")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if prev != "chan.1.100" {
		t.Fatalf("expected superseded chan.1.100; got %q", prev)
	}
}

func TestStaleUnbindKeepsNewBinding(t *testing.T) {
	r := newTest(t)
	if _, err := r.Bind(1, "chan.1.100"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := r.Bind(1, "chan.1.200"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	// the old connection tears down after being superseded
	if err := r.Unbind(1, "chan.1.100"); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	ch, ok, _ := r.Lookup(1)
	if !ok || ch != "chan.1.200" {
		t.Fatalf("expected new binding to survive; got %q ok=%v", ch, ok)
	}
}

func TestOnlineFlag(t *testing.T) {
	r := newTest(t)
	online, err := r.IsOnline(2, 1)
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if online {
		t.Fatalf("expected offline by default")
	}
	if err := r.SetOnline(2); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if online, _ := r.IsOnline(2, 1); !online {
		t.Fatalf("expected online after SetOnline")
	}
	if err := r.SetOffline(2); err != nil {
		t.Fatalf("SetOffline: %v", err)
	}
	if online, _ := r.IsOnline(2, 1); online {
		t.Fatalf("expected offline after SetOffline")
	}
}

func TestSelfAlwaysOnline(t *testing.T) {
	r := newTest(t)
	online, err := r.IsOnline(3, 3)
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if !online {
		t.Fatalf("expected a user to see themselves online")
	}
}
