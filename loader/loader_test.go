package loader

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProducer struct {
	perJob int
}

func (p countingProducer) Gather(job ArchiveJob, send func(int)) error {
	for i := 0; i < p.perJob; i++ {
		send(int(job.LID)*1000 + i)
	}
	return nil
}

type failingProducer struct{}

func (failingProducer) Gather(job ArchiveJob, send func(int)) error {
	return errors.New("boom")
}

func TestRunCollectsAllRecordsAcrossWorkers(t *testing.T) {
	jobs := make([]ArchiveJob, 10)
	for i := range jobs {
		jobs[i] = ArchiveJob{LID: uint(i + 1), Alias: "loc"}
	}
	q := NewArchiveQueue(jobs)

	var mu sync.Mutex
	var got []int
	consumer := ConsumerFunc[int](func(v int) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, v)
		return nil
	})

	err := Run[int](q, 4, countingProducer{perJob: 3}, consumer)
	require.NoError(t, err)
	assert.Len(t, got, 30)

	sort.Ints(got)
	assert.Equal(t, 1000, got[0])
}

func TestRunPropagatesConsumerError(t *testing.T) {
	jobs := []ArchiveJob{{LID: 1, Alias: "a"}, {LID: 2, Alias: "b"}}
	q := NewArchiveQueue(jobs)

	consumer := ConsumerFunc[int](func(v int) error {
		return errors.New("insert failed")
	})

	err := Run[int](q, 2, countingProducer{perJob: 5}, consumer)
	assert.Error(t, err)
}

func TestRunSkipsFailingProducersWithoutAborting(t *testing.T) {
	jobs := []ArchiveJob{{LID: 1, Alias: "a"}}
	q := NewArchiveQueue(jobs)

	var collected int
	consumer := ConsumerFunc[int](func(v int) error {
		collected++
		return nil
	})

	err := Run[int](q, 1, failingProducer{}, consumer)
	require.NoError(t, err)
	assert.Equal(t, 0, collected)
}

func TestArchiveQueuePopDrains(t *testing.T) {
	q := NewArchiveQueue([]ArchiveJob{{LID: 1}, {LID: 2}})
	_, ok := q.pop()
	require.True(t, ok)
	_, ok = q.pop()
	require.True(t, ok)
	_, ok = q.pop()
	require.False(t, ok)
}
