package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircularBuffer_FIFOOrder(t *testing.T) {
	buf := NewCircularBuffer[string](10)
	buf.Add("a")
	buf.Add("b")
	buf.Add("c")

	assert.Equal(t, []string{"a", "b", "c"}, buf.Items())
	assert.Equal(t, 3, buf.Size())
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	buf := NewCircularBuffer[string](3)
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		buf.Add(q)
	}

	assert.Equal(t, []string{"q3", "q4", "q5"}, buf.Items())
	assert.Equal(t, 3, buf.Size())
}

func TestCircularBuffer_Empty(t *testing.T) {
	buf := NewCircularBuffer[string](3)
	assert.Empty(t, buf.Items())
}

func TestLatencyToBucket(t *testing.T) {
	assert.Equal(t, BucketP10, LatencyToBucket(5*time.Millisecond))
	assert.Equal(t, BucketP50, LatencyToBucket(20*time.Millisecond))
	assert.Equal(t, BucketP100, LatencyToBucket(70*time.Millisecond))
	assert.Equal(t, BucketP500, LatencyToBucket(300*time.Millisecond))
	assert.Equal(t, BucketP1000, LatencyToBucket(2*time.Second))
}

func TestQueryMetrics_Record(t *testing.T) {
	m := NewQueryMetrics()

	m.Record(QueryEvent{
		Query:       "猫の話",
		Terms:       []string{"猫", "話"},
		ResultCount: 3,
		Latency:     5 * time.Millisecond,
	})
	m.Record(QueryEvent{
		Query:       "存在しない言葉",
		Terms:       []string{"存在", "言葉"},
		ResultCount: 0,
		Latency:     80 * time.Millisecond,
	})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"存在しない言葉"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP100])
	assert.InDelta(t, 50.0, snap.ZeroResultPercentage(), 0.001)
}

func TestQueryMetrics_TopTermsSorted(t *testing.T) {
	m := NewQueryMetrics()

	for i := 0; i < 3; i++ {
		m.Record(QueryEvent{Query: "猫", Terms: []string{"猫"}, ResultCount: 1})
	}
	m.Record(QueryEvent{Query: "犬", Terms: []string{"犬"}, ResultCount: 1})

	snap := m.Snapshot()
	assert.Len(t, snap.TopTerms, 2)
	assert.Equal(t, "猫", snap.TopTerms[0].Term)
	assert.Equal(t, int64(3), snap.TopTerms[0].Count)
	assert.Equal(t, "犬", snap.TopTerms[1].Term)
}

func TestQueryMetrics_ExactRepeats(t *testing.T) {
	m := NewQueryMetrics()

	m.Record(QueryEvent{Query: "猫", Terms: []string{"猫"}, ResultCount: 1})
	m.Record(QueryEvent{Query: "猫", Terms: []string{"猫"}, ResultCount: 1})
	m.Record(QueryEvent{Query: "犬", Terms: []string{"犬"}, ResultCount: 1})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
}

func TestQueryMetrics_ZeroResultBufferCaps(t *testing.T) {
	m := NewQueryMetricsWithConfig(Config{ZeroResultsCapacity: 2})

	for i := 0; i < 5; i++ {
		m.Record(QueryEvent{Query: fmt.Sprintf("q%d", i), ResultCount: 0})
	}

	snap := m.Snapshot()
	assert.Equal(t, []string{"q3", "q4"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(5), snap.ZeroResultCount)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(QueryEvent{
					Query:       fmt.Sprintf("query-%d", n),
					Terms:       []string{"猫"},
					ResultCount: j % 2,
					Latency:     time.Duration(j) * time.Millisecond,
				})
			}
		}(i)
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(1000), snap.TotalQueries)
}
