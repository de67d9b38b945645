package cache

import (
	"testing"
	"time"
)

func TestStore_HitWithinTTL(t *testing.T) {
	now := time.Now()
	s := NewWithClock(func() time.Time { return now })

	key := Key{Symbol: "AAPL", Window: "1y", Granularity: "1d", Kind: KindHistory}
	s.Set(key, 42, 20*time.Second)

	v, ok := s.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v.(int) != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	s := NewWithClock(func() time.Time { return now })

	key := Key{Symbol: "AAPL", Kind: KindQuote}
	s.Set(key, 1.0, 2*time.Second)

	now = now.Add(3 * time.Second)
	if _, ok := s.Get(key); ok {
		t.Error("expected entry to expire")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be evicted on read, len=%d", s.Len())
	}
}

func TestStore_KeysAreDistinct(t *testing.T) {
	s := New()
	s.Set(Key{Symbol: "AAPL", Window: "1y", Granularity: "1d", Kind: KindHistory}, "daily", time.Minute)
	s.Set(Key{Symbol: "AAPL", Window: "1y", Granularity: "1h", Kind: KindIntraday}, "hourly", time.Minute)

	v, ok := s.Get(Key{Symbol: "AAPL", Window: "1y", Granularity: "1d", Kind: KindHistory})
	if !ok || v.(string) != "daily" {
		t.Errorf("wrong value for daily key: %v", v)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New()
	s.Set(Key{Symbol: "SPY", Kind: KindQuote}, 500.0, time.Minute)
	s.Clear()
	if _, ok := s.Get(Key{Symbol: "SPY", Kind: KindQuote}); ok {
		t.Error("expected miss after Clear")
	}
}
