package service

import (
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/models"
)

// OrderCache parks a tracked order between sync attempts. Eviction after the
// TTL pushes the order back onto the sync channel, which gives the fixed
// re-check cadence without a per-order timer.
type OrderCache interface {
	AddOrder(order *models.Order)
}

type OrderCacheImpl struct {
	parked    *cache.Cache
	orderChan chan models.Order
	stopped   atomic.Bool
}

func NewOrderCache(defaultExpiration, cleanupInterval time.Duration, orderChan chan models.Order) *OrderCacheImpl {
	oc := &OrderCacheImpl{
		parked:    cache.New(defaultExpiration, cleanupInterval),
		orderChan: orderChan,
	}
	oc.parked.OnEvicted(oc.requeue)
	return oc
}

// AddOrder parks the order until the next sync attempt. A duplicate add is a
// no-op: the order is already scheduled.
func (oc *OrderCacheImpl) AddOrder(order *models.Order) {
	key := order.UUID.String()
	if err := oc.parked.Add(key, *order, cache.DefaultExpiration); err != nil {
		logger.Log.Debug("order already waiting for sync", zap.String("order_uuid", key))
	}
}

// Stop disables requeueing. Call it before closing the sync channel so a
// late eviction cannot send on a closed channel.
func (oc *OrderCacheImpl) Stop() {
	oc.stopped.Store(true)
}

func (oc *OrderCacheImpl) requeue(key string, value interface{}) {
	if oc.stopped.Load() {
		return
	}
	order, ok := value.(models.Order)
	if !ok {
		return
	}
	oc.orderChan <- order
}
