package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	tr := New()

	tr.CacheHit("predictor")
	tr.CacheHit("predictor")
	tr.CacheMiss("predictor")
	tr.Success("predictor")
	tr.Failure("buildings")
	tr.Discard("predictor")

	snap := tr.Snapshot()
	assert.Equal(t, int64(2), snap["predictor"].CacheHits)
	assert.Equal(t, int64(1), snap["predictor"].CacheMisses)
	assert.Equal(t, int64(1), snap["predictor"].Success)
	assert.Equal(t, int64(1), snap["predictor"].Discarded)
	assert.Equal(t, int64(1), snap["buildings"].Failures)
	assert.Zero(t, snap["buildings"].Success)
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := New()
	tr.Success("predictor")

	snap := tr.Snapshot()
	s := snap["predictor"]
	s.Success = 99

	assert.Equal(t, int64(1), tr.Snapshot()["predictor"].Success)
}

func TestConcurrentBumps(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Success("predictor")
			tr.CacheMiss("segments")
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, int64(50), snap["predictor"].Success)
	assert.Equal(t, int64(50), snap["segments"].CacheMisses)
}
