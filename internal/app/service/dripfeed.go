package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service/clients"
)

// DripFeedWorker delivers each drip-feed order in daily portions instead of
// all at once.
type DripFeedWorker struct {
	dripFeedRepo repository.DripFeedRepository
	orderRepo    repository.OrderRepository
	serviceRepo  repository.ServiceRepository
	orderService OrderService
	fulfilment   FulfilmentClient
	interval     time.Duration
}

func NewDripFeedWorker(dripFeedRepo repository.DripFeedRepository,
	orderRepo repository.OrderRepository,
	serviceRepo repository.ServiceRepository,
	orderService OrderService,
	fulfilment FulfilmentClient) *DripFeedWorker {
	return &DripFeedWorker{
		dripFeedRepo: dripFeedRepo,
		orderRepo:    orderRepo,
		serviceRepo:  serviceRepo,
		orderService: orderService,
		fulfilment:   fulfilment,
		interval:     time.Minute,
	}
}

func (w *DripFeedWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.deliverDue(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *DripFeedWorker) deliverDue(ctx context.Context) {
	due, err := w.dripFeedRepo.GetDue(ctx, time.Now())
	if err != nil {
		logger.Log.Error("failed to read due drip feeds", zap.Error(err))
		return
	}
	for _, dfo := range due {
		if err := w.deliverPortion(ctx, dfo); err != nil {
			logger.Log.Error("drip feed delivery failed",
				zap.Int64("drip_feed_id", dfo.ID), zap.Error(err))
		}
	}
}

func (w *DripFeedWorker) deliverPortion(ctx context.Context, dfo models.DripFeedOrder) error {
	order, err := w.orderRepo.GetOrderByUUID(ctx, dfo.OrderUUID)
	if err != nil {
		return err
	}
	if order.Status != models.DripFeedActive {
		// The order was cancelled or refunded; stop the schedule.
		return w.deactivate(ctx, &dfo)
	}

	portion := dfo.DailyQuantity
	if remaining := dfo.TotalQuantity - dfo.DeliveredQuantity; portion > remaining {
		portion = remaining
	}
	if portion > 0 {
		providerServiceID := ""
		if order.ServiceUUID != nil {
			if svc, err := w.serviceRepo.GetByUUID(ctx, *order.ServiceUUID); err == nil && svc.ProviderServiceID != nil {
				providerServiceID = *svc.ProviderServiceID
			}
		}
		_, err = w.fulfilment.DispatchOrder(ctx, clients.DispatchRequest{
			OrderID:           order.UUID.String(),
			ProviderServiceID: providerServiceID,
			TargetURL:         order.TargetURL,
			Quantity:          portion,
			Express:           false,
		})
		if err != nil {
			// Leave next_run_at untouched; the next tick retries.
			return err
		}
	}

	dfo.DeliveredQuantity += portion
	dfo.NextRunAt = time.Now().Add(24 * time.Hour)
	done := dfo.DeliveredQuantity >= dfo.TotalQuantity
	if done {
		dfo.IsActive = false
	}

	tx, err := w.dripFeedRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := w.dripFeedRepo.Update(ctx, tx, &dfo); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit drip feed progress: %w", err)
	}

	if done {
		return w.orderService.UpdateStatus(ctx, order, models.Completed)
	}
	return nil
}

func (w *DripFeedWorker) deactivate(ctx context.Context, dfo *models.DripFeedOrder) error {
	dfo.IsActive = false
	tx, err := w.dripFeedRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := w.dripFeedRepo.Update(ctx, tx, dfo); err != nil {
		return err
	}
	return tx.Commit()
}
