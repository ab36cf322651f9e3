package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	clk := newTestClock()
	c := NewCache(time.Hour, clk.Now)

	if _, ok := c.Get(); ok {
		t.Fatal("new cache should be empty")
	}

	r := Reading{Temperature: 22, Humidity: 55, SoilMoisture: 40, LightLevel: 80, Timestamp: "t1"}
	c.Set(r, clk.Now())

	got, ok := c.Get()
	if !ok || got.Reading != r || !got.FetchedAt.Equal(clk.Now()) {
		t.Errorf("Get() = %+v, %v", got, ok)
	}

	r2 := Reading{Temperature: 23, Timestamp: "t2"}
	c.Set(r2, clk.Now())

	if got, _ := c.Get(); got.Reading != r2 {
		t.Errorf("Set() should overwrite, got %+v", got.Reading)
	}
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	clk := newTestClock()
	c := NewCache(time.Hour, clk.Now)
	c.Set(Reading{Temperature: 22}, clk.Now())

	clk.Advance(time.Hour)

	if _, ok := c.Get(); !ok {
		t.Error("entry exactly at the retention boundary should still be served")
	}

	clk.Advance(time.Nanosecond)

	if _, ok := c.Get(); ok {
		t.Error("entry older than retention must not be served")
	}

	// Rewinding the clock must not resurrect a dropped entry
	clk.Advance(-time.Hour)

	if _, ok := c.Get(); ok {
		t.Error("expired entry should have been dropped")
	}
}

func TestCache_AgeAndStaleness(t *testing.T) {
	t.Parallel()

	clk := newTestClock()
	c := NewCache(0, clk.Now)

	if c.Retention() != DefaultCacheRetention {
		t.Errorf("Retention() = %v, want default %v", c.Retention(), DefaultCacheRetention)
	}

	if _, ok := c.Age(); ok {
		t.Error("Age() of empty cache should report false")
	}

	if !c.IsStale(time.Minute) {
		t.Error("empty cache should be stale")
	}

	c.Set(Reading{Temperature: 1}, clk.Now())
	clk.Advance(10 * time.Minute)

	age, ok := c.Age()
	if !ok || age != 10*time.Minute {
		t.Errorf("Age() = %v, %v, want 10m", age, ok)
	}

	if c.IsStale(15 * time.Minute) {
		t.Error("10 minute old entry should not be stale at a 15 minute threshold")
	}

	if !c.IsStale(5 * time.Minute) {
		t.Error("10 minute old entry should be stale at a 5 minute threshold")
	}

	c.Clear()

	if _, ok := c.Get(); ok {
		t.Error("Clear() should drop the entry")
	}
}

func TestCache_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	c := NewCache(time.Hour, nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			c.Set(Reading{Temperature: float64(i + 1)}, time.Now())
			c.Get()
			c.Age()
		}()
	}

	wg.Wait()

	got, ok := c.Get()
	if !ok || got.Reading.Temperature < 1 || got.Reading.Temperature > 50 {
		t.Errorf("Get() after concurrent writes = %+v, %v", got, ok)
	}
}
