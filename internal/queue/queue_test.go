package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failure struct {
	Number int
	Cell   int
}

func TestQueue_PushAndDrain(t *testing.T) {
	q := New[failure]()
	assert.True(t, q.Empty())

	q.Push(failure{1, 10})
	q.Push(failure{2, 11}, failure{3, 12})
	assert.Equal(t, 3, q.Len())

	batch := q.GetAndEmpty()
	assert.Equal(t, []failure{{1, 10}, {2, 11}, {3, 12}}, batch)
	assert.True(t, q.Empty())
	assert.Empty(t, q.GetAndEmpty())
}

func TestQueue_DrainedBatchIsDetached(t *testing.T) {
	q := New[failure]()
	q.Push(failure{1, 10})
	batch := q.GetAndEmpty()

	q.Push(failure{2, 11})
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].Number)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_PushFront(t *testing.T) {
	tests := []struct {
		name    string
		retried []failure
		pending []failure
		want    []failure
	}{
		{"empty queue", []failure{{1, 0}, {2, 0}}, nil, []failure{{1, 0}, {2, 0}}},
		{"ahead of newer", []failure{{1, 0}}, []failure{{2, 0}, {3, 0}}, []failure{{1, 0}, {2, 0}, {3, 0}}},
		{"nothing retried", nil, []failure{{2, 0}}, []failure{{2, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New[failure]()
			q.Push(tt.pending...)
			q.PushFront(tt.retried...)
			assert.Equal(t, tt.want, q.GetAndEmpty())
		})
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New[failure]()

	var wg sync.WaitGroup
	drained := make(chan int)
	go func() {
		n := 0
		for n < 400 {
			n += len(q.GetAndEmpty())
		}
		drained <- n
	}()

	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(failure{Number: i, Cell: p})
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 400, <-drained)
	assert.True(t, q.Empty())
}
