package queue_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panjf2000/evsource/internal/queue"
)

func TestLockFreeQueue(t *testing.T) {
	const taskNum = 10000
	q := queue.NewLockFreeQueue()
	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			for i := 0; i < taskNum; i++ {
				q.Enqueue(&queue.Task{})
			}
		}()
	}

	var counter int32
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			for {
				task := q.Dequeue()
				if task != nil {
					atomic.AddInt32(&counter, 1)
				}
				if task == nil && atomic.LoadInt32(&counter) == 2*taskNum {
					break
				}
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 2*taskNum, counter)
	assert.True(t, q.IsEmpty())
	assert.Zero(t, q.Len())
}

func TestLockFreeQueueOrder(t *testing.T) {
	q := queue.NewLockFreeQueue()
	require.Nil(t, q.Dequeue())
	for i := 0; i < 100; i++ {
		task := queue.GetTask()
		task.Arg = i
		q.Enqueue(task)
	}
	require.Equal(t, 100, q.Len())
	for i := 0; i < 100; i++ {
		task := q.Dequeue()
		require.NotNil(t, task)
		assert.Equal(t, i, task.Arg)
		queue.PutTask(task)
	}
	assert.True(t, q.IsEmpty())
}
