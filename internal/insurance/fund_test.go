package insurance

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCover_FullyCovered(t *testing.T) {
	f := NewFund(1_000_000)

	covered := f.Cover(250_000)

	assert.Equal(t, int64(250_000), covered)
	snap := f.Snapshot()
	assert.Equal(t, int64(750_000), snap.Balance)
	assert.Equal(t, int64(250_000), snap.TotalBadDebtCovered)
	assert.Equal(t, int64(1_000_000), snap.TotalContributions)
}

// Deficit larger than the balance: the fund pays what it has and the rest
// stays uncovered.
func TestCover_PartialCoverage(t *testing.T) {
	f := NewFund(1_000_000)

	deficit := int64(2_000_000)
	covered := f.Cover(deficit)

	require.Equal(t, int64(1_000_000), covered)
	assert.Equal(t, int64(1_000_000), deficit-covered)
	snap := f.Snapshot()
	assert.Zero(t, snap.Balance)
	assert.Equal(t, int64(1_000_000), snap.TotalBadDebtCovered)
}

func TestCover_ZeroAndNegativeDeficit(t *testing.T) {
	f := NewFund(10)

	assert.Zero(t, f.Cover(0))
	assert.Zero(t, f.Cover(-5))
	assert.Equal(t, int64(10), f.Snapshot().Balance)
}

func TestCover_EmptyFund(t *testing.T) {
	f := NewFund(0)

	assert.Zero(t, f.Cover(math.MaxInt64))
	assert.Zero(t, f.Snapshot().Balance)
}

func TestCover_SequenceNeverNegative(t *testing.T) {
	f := NewFund(1_000)
	deficits := []int64{300, 0, 450, 1, 999, 7, math.MaxInt64}

	var total int64
	for _, d := range deficits {
		c := f.Cover(d)
		require.GreaterOrEqual(t, c, int64(0))
		require.LessOrEqual(t, c, max(d, 0))
		require.GreaterOrEqual(t, f.Snapshot().Balance, int64(0))
		total += c
	}
	assert.Equal(t, int64(1_000), total)
	assert.Equal(t, total, f.Snapshot().TotalBadDebtCovered)
}

func TestCover_Concurrent(t *testing.T) {
	f := NewFund(10_000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := f.Cover(150)
			mu.Lock()
			total += c
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10_000), total)
	assert.Zero(t, f.Snapshot().Balance)
}

func TestNewFund_NegativeInitial(t *testing.T) {
	f := NewFund(-1)
	assert.Zero(t, f.Snapshot().Balance)
}
