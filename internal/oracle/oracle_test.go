package oracle

import (
	"math"
	"sync"
	"testing"
)

func TestMarkPrice_UnknownSymbol(t *testing.T) {
	o := New()
	if _, ok := o.MarkPrice("DOGE-USD"); ok {
		t.Error("unknown symbol should report ok=false")
	}
}

func TestRefresh_AppliesDrift(t *testing.T) {
	o := New()
	o.Track("BTC-USD", 50_000_000_000, -500_000)
	o.Track("ETH-USD", 2_800_000_000, -20_000)

	o.Refresh()
	o.Refresh()

	if p, _ := o.MarkPrice("BTC-USD"); p != 49_999_000_000 {
		t.Errorf("BTC-USD: expected 49999000000, got %d", p)
	}
	if p, _ := o.MarkPrice("ETH-USD"); p != 2_799_960_000 {
		t.Errorf("ETH-USD: expected 2799960000, got %d", p)
	}
}

func TestRefresh_SaturatesAtZero(t *testing.T) {
	o := New()
	o.Track("X", 3, -2)

	o.Refresh()
	o.Refresh()
	o.Refresh()

	if p, _ := o.MarkPrice("X"); p != 0 {
		t.Errorf("expected price floored at 0, got %d", p)
	}
}

func TestRefresh_SaturatesAtMax(t *testing.T) {
	o := New()
	o.Track("X", math.MaxInt64-1, 10)

	o.Refresh()

	if p, _ := o.MarkPrice("X"); p != math.MaxInt64 {
		t.Errorf("expected MaxInt64, got %d", p)
	}
}

func TestSet_KeepsDrift(t *testing.T) {
	o := New()
	o.Track("BTC-USD", 100, 5)
	o.Set("BTC-USD", 1000)
	o.Refresh()

	if p, _ := o.MarkPrice("BTC-USD"); p != 1005 {
		t.Errorf("expected 1005, got %d", p)
	}
}

func TestSet_TracksNewSymbol(t *testing.T) {
	o := New()
	o.Set("SOL-USD", 150_000_000)
	o.Refresh()

	if p, ok := o.MarkPrice("SOL-USD"); !ok || p != 150_000_000 {
		t.Errorf("expected 150000000 with zero drift, got %d ok=%v", p, ok)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	o := New()
	o.Track("BTC-USD", 100, 0)

	snap := o.Snapshot()
	snap["BTC-USD"] = 1

	if p, _ := o.MarkPrice("BTC-USD"); p != 100 {
		t.Errorf("snapshot mutation leaked into oracle: %d", p)
	}
}

func TestConcurrentReadsDuringRefresh(t *testing.T) {
	o := New()
	o.Track("BTC-USD", 1_000_000, -1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if _, ok := o.MarkPrice("BTC-USD"); !ok {
					t.Error("tracked symbol disappeared")
					return
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		o.Refresh()
	}
	wg.Wait()

	if p, _ := o.MarkPrice("BTC-USD"); p != 999_000 {
		t.Errorf("expected 999000, got %d", p)
	}
}
