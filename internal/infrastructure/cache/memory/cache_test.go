package memory

import (
	"testing"
	"time"
)

func TestGetReturnsStoredValueUntilExpiry(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Set("meta:doc-1", "value", 50*time.Millisecond)

	got, ok := c.Get("meta:doc-1")
	if !ok || got != "value" {
		t.Fatalf("expected cached value, got %v (ok=%v)", got, ok)
	}

	time.Sleep(70 * time.Millisecond)
	if _, ok := c.Get("meta:doc-1"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestSetIgnoresNonPositiveTTL(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Set("key", "value", 0)
	if _, ok := c.Get("key"); ok {
		t.Fatalf("zero ttl must not store")
	}
}

func TestGetUnknownKeyMisses(t *testing.T) {
	c := New(0)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss")
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	c.Set("short", "v", 5*time.Millisecond)
	c.Set("long", "v", time.Minute)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.Len() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 1 {
		t.Fatalf("expected sweeper to drop expired entry, len=%d", c.Len())
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatalf("live entry must survive the sweep")
	}
}
