package searchtype

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordResolution(t *testing.T) {
	m := NewMetrics()

	m.RecordResolution(10*time.Millisecond, 3, nil)
	m.RecordResolution(30*time.Millisecond, 0, fmt.Errorf("walk: %w", ErrUnknownType))
	m.RecordResolution(20*time.Millisecond, 1, Unsupported("binary", "or"))

	assert.Equal(t, uint64(3), m.ResolutionsTotal())
	assert.Equal(t, uint64(2), m.ResolutionsFailed())
	assert.Equal(t, uint64(4), m.MappingsTotal())
	assert.Equal(t, uint64(1), m.Faults("unknown-type"))
	assert.Equal(t, uint64(1), m.Faults("unsupported-expression"))
	assert.Equal(t, uint64(0), m.Faults("unknown-resource-type"))

	assert.Equal(t, 10*time.Millisecond, m.MinResolutionTime())
	assert.Equal(t, 30*time.Millisecond, m.MaxResolutionTime())
	assert.Equal(t, 20*time.Millisecond, m.AverageResolutionTime())
}

func TestMetrics_Empty(t *testing.T) {
	m := NewMetrics()

	assert.Zero(t, m.AverageResolutionTime())
	assert.Zero(t, m.MinResolutionTime())
	assert.Zero(t, m.MaxResolutionTime())

	s := m.Snapshot()
	assert.Zero(t, s.ResolutionsTotal)
	assert.Nil(t, s.Faults)
}

func TestMetrics_SnapshotAndReset(t *testing.T) {
	m := NewMetrics()
	m.RecordResolution(time.Millisecond, 2, fmt.Errorf("x: %w", ErrUnknownResourceType))

	s := m.Snapshot()
	require.Equal(t, uint64(1), s.ResolutionsTotal)
	assert.Equal(t, uint64(2), s.MappingsTotal)
	assert.Equal(t, map[string]uint64{"unknown-resource-type": 1}, s.Faults)

	m.Reset()
	assert.Zero(t, m.ResolutionsTotal())
	assert.Zero(t, m.Faults("unknown-resource-type"))
	assert.Zero(t, m.MinResolutionTime())
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordResolution(time.Microsecond, 1, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), m.ResolutionsTotal())
	assert.Equal(t, uint64(50), m.MappingsTotal())
}
