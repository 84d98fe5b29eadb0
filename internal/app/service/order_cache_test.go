package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/instafly/instafly/internal/app/models"
)

func TestOrderCacheImpl_RequeuesOnEviction(t *testing.T) {
	orderChan := make(chan models.Order, 10)
	oc := NewOrderCache(20*time.Millisecond, 10*time.Millisecond, orderChan)

	order := models.Order{UUID: uuid.New(), Status: models.Processing}
	oc.AddOrder(&order)

	select {
	case requeued := <-orderChan:
		assert.Equal(t, order.UUID, requeued.UUID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the order back on the channel after eviction")
	}
}

func TestOrderCacheImpl_StopPreventsRequeueOnClosedChannel(t *testing.T) {
	orderChan := make(chan models.Order, 10)
	oc := NewOrderCache(20*time.Millisecond, 10*time.Millisecond, orderChan)

	oc.Stop()
	oc.AddOrder(&models.Order{UUID: uuid.New(), Status: models.Processing})
	close(orderChan)

	// The shutdown ordering: a requeue after Stop would send on the closed
	// channel and panic the janitor goroutine, killing the test binary.
	time.Sleep(200 * time.Millisecond)
	_, open := <-orderChan
	assert.False(t, open, "nothing may be requeued after Stop")
}
