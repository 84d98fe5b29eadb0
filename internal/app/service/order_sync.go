package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/metrics"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service/clients"
)

type StatusSyncClient interface {
	SyncOrderStatus(ctx context.Context, orderID string) (*clients.OrderStatusResponse, error)
}

// OrderSyncWorker re-checks every order in a non-terminal tracked status
// against the external status source. A changed status triggers exactly one
// full-order refetch and update; once the order leaves the tracked set it is
// dropped from the cycle.
type OrderSyncWorker struct {
	orderRepo    repository.OrderRepository
	orderCache   OrderCache
	orderService OrderService
	syncClient   StatusSyncClient
	orderMetrics *metrics.OrderMetrics
	orderChan    chan models.Order
}

func NewOrderSyncWorker(orderRepo repository.OrderRepository,
	orderCache OrderCache,
	orderService OrderService,
	syncClient StatusSyncClient,
	orderMetrics *metrics.OrderMetrics,
	orderChan chan models.Order) *OrderSyncWorker {
	w := &OrderSyncWorker{
		orderRepo:    orderRepo,
		orderCache:   orderCache,
		orderService: orderService,
		syncClient:   syncClient,
		orderMetrics: orderMetrics,
		orderChan:    orderChan,
	}
	w.TrackUnfinishedOrders()
	return w
}

// TrackUnfinishedOrders re-enqueues every tracked order left over from a
// previous run.
func (w *OrderSyncWorker) TrackUnfinishedOrders() {
	logger.Log.Info("start tracking unfinished orders")
	totalOrders, err := w.orderRepo.CountTrackedOrders()
	if err != nil {
		logger.Log.Error("failed to count tracked orders", zap.Error(err))
		return
	}
	if totalOrders != 0 {
		cnt := 0
		for cnt < totalOrders {
			limit := 20
			offset := cnt
			orders, err := w.orderRepo.GetTrackedOrders(limit, offset)
			if err != nil {
				logger.Log.Error("failed to get tracked orders", zap.Error(err))
				return
			}
			for _, order := range orders {
				w.orderChan <- order
			}
			cnt += 20
		}
	}
	logger.Log.Info("enqueued tracked orders", zap.Int("total_orders", totalOrders))
}

func tracked(s models.Status) bool {
	switch s {
	case models.PendingPayment, models.Processing, models.DripFeedActive:
		return true
	}
	return false
}

func (w *OrderSyncWorker) Run(ctx context.Context) {
	for {
		select {
		case order := <-w.orderChan:
			w.syncOne(ctx, order)
		case <-ctx.Done():
			return
		}
	}
}

func (w *OrderSyncWorker) syncOne(ctx context.Context, order models.Order) {
	if !tracked(order.Status) {
		return
	}
	logger.Log.Debug("syncing order", zap.String("order_uuid", order.UUID.String()))
	w.orderMetrics.SyncAttemptsTotal.Inc()

	info, err := w.syncClient.SyncOrderStatus(ctx, order.UUID.String())
	if err != nil {
		logger.Log.Debug("error syncing order status", zap.Error(err))
		w.orderCache.AddOrder(&order)
		return
	}

	reported := models.Status(info.Status)
	if reported == order.Status {
		// Nothing changed; park for the next cycle.
		w.orderCache.AddOrder(&order)
		return
	}

	// One full refetch per observed change.
	fresh, err := w.orderRepo.GetOrderByUUID(ctx, order.UUID)
	if err != nil {
		logger.Log.Error("failed to refetch order", zap.Error(err))
		w.orderCache.AddOrder(&order)
		return
	}
	if fresh.Status == reported {
		// Someone else already applied the transition.
		if tracked(fresh.Status) {
			w.orderCache.AddOrder(fresh)
		}
		return
	}
	if info.ProviderStatus != "" {
		providerStatus := info.ProviderStatus
		fresh.ProviderStatus = &providerStatus
	}
	if err := w.orderService.UpdateStatus(ctx, fresh, reported); err != nil {
		logger.Log.Error("failed to update order status",
			zap.String("order_uuid", fresh.UUID.String()),
			zap.String("reported", reported.String()),
			zap.Error(err))
		w.orderCache.AddOrder(fresh)
		return
	}
	w.orderMetrics.SyncTransitionsTotal.Inc()
	if tracked(fresh.Status) {
		w.orderCache.AddOrder(fresh)
	}
}
