package protocol

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingQueueArmsOnlyOnEmptyToNonEmpty(t *testing.T) {
	var q pendingQueue

	assert.True(t, q.Append("first"), "first append must arm the flush")
	assert.False(t, q.Append("second"), "appends during the window ride the armed flush")
	assert.False(t, q.Append("third"))
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []string{"first", "second", "third"}, q.Drain())
	assert.Equal(t, 0, q.Len())

	// The queue re-arms after a drain.
	assert.True(t, q.Append("fourth"))
}

func TestPendingQueueDrainOnEmptyQueue(t *testing.T) {
	var q pendingQueue

	assert.Empty(t, q.Drain())
	assert.True(t, q.Append("line"), "an empty drain must not leave the queue armed")
}

func TestPendingQueueConcurrentAppendsAreNotLost(t *testing.T) {
	const (
		writers        = 8
		linesPerWriter = 100
	)

	var q pendingQueue
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < linesPerWriter; i++ {
				q.Append(fmt.Sprintf("writer %d line %d", w, i))
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, q.Drain(), writers*linesPerWriter)
}
