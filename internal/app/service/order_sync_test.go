package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instafly/instafly/internal/app/metrics"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service/clients"
)

type fakeSyncOrderRepo struct {
	orders     map[uuid.UUID]*models.Order
	fetchCount int
}

func (f *fakeSyncOrderRepo) CreateOrder(context.Context, *sqlx.Tx, *models.Order) error { return nil }
func (f *fakeSyncOrderRepo) GetOrderByUUID(_ context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	f.fetchCount++
	order, ok := f.orders[orderUUID]
	if !ok {
		return nil, errors.New("order not found")
	}
	copied := *order
	return &copied, nil
}
func (f *fakeSyncOrderRepo) GetOrderByDisplayID(context.Context, string) (*models.Order, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeSyncOrderRepo) GetOrderByPaymentID(context.Context, string) (*models.Order, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeSyncOrderRepo) GetOrdersByUserUID(context.Context, *uuid.UUID) ([]models.Order, error) {
	return nil, nil
}
func (f *fakeSyncOrderRepo) ListOrders(context.Context, repository.ListOptions) ([]models.Order, error) {
	return nil, nil
}
func (f *fakeSyncOrderRepo) UpdateOrder(context.Context, *sqlx.Tx, *models.Order) error { return nil }
func (f *fakeSyncOrderRepo) CountTrackedOrders() (int, error)                           { return 0, nil }
func (f *fakeSyncOrderRepo) GetTrackedOrders(int, int) ([]models.Order, error)          { return nil, nil }
func (f *fakeSyncOrderRepo) GetDB() *sqlx.DB                                            { return nil }

type fakeOrderCache struct {
	parked []models.Order
}

func (f *fakeOrderCache) AddOrder(order *models.Order) {
	f.parked = append(f.parked, *order)
}

type fakeStatusClient struct {
	status string
	err    error
	calls  int
}

func (f *fakeStatusClient) SyncOrderStatus(context.Context, string) (*clients.OrderStatusResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &clients.OrderStatusResponse{Status: f.status}, nil
}

type fakeStatusUpdater struct {
	OrderService
	updates []models.Status
	err     error
}

func (f *fakeStatusUpdater) UpdateStatus(_ context.Context, order *models.Order, to models.Status) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, to)
	order.Status = to
	return nil
}

func newSyncTestWorker(t *testing.T, repo *fakeSyncOrderRepo, cache *fakeOrderCache,
	updater *fakeStatusUpdater, client *fakeStatusClient) *OrderSyncWorker {
	t.Helper()
	return NewOrderSyncWorker(repo, cache, updater, client,
		metrics.NewOrderMetrics(prometheus.NewRegistry()), make(chan models.Order, 10))
}

func TestOrderSyncWorker_StatusChangeTriggersOneRefetch(t *testing.T) {
	order := models.Order{UUID: uuid.New(), Status: models.Processing}
	repo := &fakeSyncOrderRepo{orders: map[uuid.UUID]*models.Order{order.UUID: {UUID: order.UUID, Status: models.Processing}}}
	cache := &fakeOrderCache{}
	updater := &fakeStatusUpdater{}
	client := &fakeStatusClient{status: "completed"}

	w := newSyncTestWorker(t, repo, cache, updater, client)
	w.syncOne(context.Background(), order)

	assert.Equal(t, 1, repo.fetchCount, "exactly one refetch per observed change")
	require.Len(t, updater.updates, 1)
	assert.Equal(t, models.Completed, updater.updates[0])
	assert.Empty(t, cache.parked, "a finished order must leave the sync cycle")
}

func TestOrderSyncWorker_UnchangedStatusParksWithoutRefetch(t *testing.T) {
	order := models.Order{UUID: uuid.New(), Status: models.Processing}
	repo := &fakeSyncOrderRepo{orders: map[uuid.UUID]*models.Order{}}
	cache := &fakeOrderCache{}
	updater := &fakeStatusUpdater{}
	client := &fakeStatusClient{status: "processing"}

	w := newSyncTestWorker(t, repo, cache, updater, client)
	w.syncOne(context.Background(), order)

	assert.Zero(t, repo.fetchCount)
	assert.Empty(t, updater.updates)
	require.Len(t, cache.parked, 1)
	assert.Equal(t, order.UUID, cache.parked[0].UUID)
}

func TestOrderSyncWorker_UntrackedOrderIsIgnored(t *testing.T) {
	order := models.Order{UUID: uuid.New(), Status: models.Completed}
	repo := &fakeSyncOrderRepo{orders: map[uuid.UUID]*models.Order{}}
	cache := &fakeOrderCache{}
	updater := &fakeStatusUpdater{}
	client := &fakeStatusClient{status: "completed"}

	w := newSyncTestWorker(t, repo, cache, updater, client)
	w.syncOne(context.Background(), order)

	assert.Zero(t, client.calls)
	assert.Empty(t, cache.parked)
}

func TestOrderSyncWorker_SyncErrorParksOrder(t *testing.T) {
	order := models.Order{UUID: uuid.New(), Status: models.PendingPayment}
	repo := &fakeSyncOrderRepo{orders: map[uuid.UUID]*models.Order{}}
	cache := &fakeOrderCache{}
	updater := &fakeStatusUpdater{}
	client := &fakeStatusClient{err: errors.New("upstream unavailable")}

	w := newSyncTestWorker(t, repo, cache, updater, client)
	w.syncOne(context.Background(), order)

	assert.Zero(t, repo.fetchCount)
	require.Len(t, cache.parked, 1)
}

func TestOrderSyncWorker_MidLifecycleChangeStaysTracked(t *testing.T) {
	order := models.Order{UUID: uuid.New(), Status: models.PendingPayment}
	repo := &fakeSyncOrderRepo{orders: map[uuid.UUID]*models.Order{order.UUID: {UUID: order.UUID, Status: models.PendingPayment}}}
	cache := &fakeOrderCache{}
	updater := &fakeStatusUpdater{}
	client := &fakeStatusClient{status: "processing"}

	w := newSyncTestWorker(t, repo, cache, updater, client)
	w.syncOne(context.Background(), order)

	require.Len(t, updater.updates, 1)
	assert.Equal(t, models.Processing, updater.updates[0])
	require.Len(t, cache.parked, 1, "a still-tracked order goes back into the cycle")
	assert.Equal(t, models.Processing, cache.parked[0].Status)
}
