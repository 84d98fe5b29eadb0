package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instafly/instafly/internal/app/models"
)

const initOrderDB = `
CREATE TABLE IF NOT EXISTS orders
(
    uuid VARCHAR PRIMARY KEY,
    display_id VARCHAR NOT NULL UNIQUE,
    user_uuid VARCHAR NOT NULL,
    service_uuid VARCHAR,
    target_url VARCHAR NOT NULL DEFAULT '',
    quantity INTEGER NOT NULL DEFAULT 0,
    total_price NUMERIC NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending_payment',
    payment_method VARCHAR NOT NULL DEFAULT 'pix',
    payment_id VARCHAR,
    provider_order_id VARCHAR,
    provider_status VARCHAR,
    customer_email VARCHAR NOT NULL DEFAULT '',
    customer_whatsapp VARCHAR NOT NULL DEFAULT '',
    coupon_code VARCHAR,
    discount_amount NUMERIC NOT NULL DEFAULT 0,
    affiliate_code VARCHAR,
    is_express BOOLEAN NOT NULL DEFAULT FALSE,
    is_drip_feed BOOLEAN NOT NULL DEFAULT FALSE,
    drip_days INTEGER NOT NULL DEFAULT 0,
    is_deposit BOOLEAN NOT NULL DEFAULT FALSE,
    wallet_paid BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func setupInMemoryOrderDB(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not create in-memory db: %v", err)
	}
	// every connection of an in-memory db is its own database
	db.SetMaxOpenConns(1)
	_, err = db.Exec(initOrderDB)
	if err != nil {
		t.Fatalf("could not create orders table: %v", err)
	}
	return db
}

func insertTestOrder(t *testing.T, db *sqlx.DB, repo *OrderRepositoryImpl, order *models.Order) {
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(context.Background(), tx, order))
	require.NoError(t, tx.Commit())
}

func newTestOrder(status models.Status) *models.Order {
	svcUUID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Order{
		UUID:          uuid.New(),
		DisplayID:     "IF-" + uuid.New().String()[:8],
		UserUUID:      uuid.New(),
		ServiceUUID:   &svcUUID,
		TargetURL:     "https://instagram.com/someprofile",
		Quantity:      1000,
		TotalPrice:    49.9,
		Status:        status,
		PaymentMethod: models.PaymentMethodPix,
		CustomerEmail: "customer@example.com",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderRepositoryImpl_CreateAndGetOrder(t *testing.T) {
	db := setupInMemoryOrderDB(t)
	defer db.Close()
	repo := NewOrderRepository(db)

	order := newTestOrder(models.PendingPayment)
	order.IsDripFeed = true
	order.DripDays = 5
	insertTestOrder(t, db, repo, order)

	got, err := repo.GetOrderByUUID(context.Background(), order.UUID)
	require.NoError(t, err)
	assert.Equal(t, order.UUID, got.UUID)
	assert.Equal(t, order.DisplayID, got.DisplayID)
	assert.Equal(t, models.PendingPayment, got.Status)
	assert.Equal(t, order.TotalPrice, got.TotalPrice)
	assert.Equal(t, 5, got.DripDays)

	byDisplay, err := repo.GetOrderByDisplayID(context.Background(), order.DisplayID)
	require.NoError(t, err)
	assert.Equal(t, order.UUID, byDisplay.UUID)

	_, err = repo.GetOrderByUUID(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestOrderRepositoryImpl_GetOrderByPaymentID(t *testing.T) {
	db := setupInMemoryOrderDB(t)
	defer db.Close()
	repo := NewOrderRepository(db)

	order := newTestOrder(models.PendingPayment)
	paymentID := "mp-12345"
	order.PaymentID = &paymentID
	insertTestOrder(t, db, repo, order)

	got, err := repo.GetOrderByPaymentID(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, order.UUID, got.UUID)
}

func TestOrderRepositoryImpl_UpdateOrder(t *testing.T) {
	db := setupInMemoryOrderDB(t)
	defer db.Close()
	repo := NewOrderRepository(db)

	order := newTestOrder(models.PendingPayment)
	insertTestOrder(t, db, repo, order)

	order.Status = models.Processing
	providerID := "prov-77"
	order.ProviderOrderID = &providerID
	order.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateOrder(context.Background(), tx, order))
	require.NoError(t, tx.Commit())

	got, err := repo.GetOrderByUUID(context.Background(), order.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.Processing, got.Status)
	require.NotNil(t, got.ProviderOrderID)
	assert.Equal(t, providerID, *got.ProviderOrderID)
}

func TestOrderRepositoryImpl_TrackedOrders(t *testing.T) {
	db := setupInMemoryOrderDB(t)
	defer db.Close()
	repo := NewOrderRepository(db)

	for _, status := range []models.Status{
		models.PendingPayment,
		models.Processing,
		models.DripFeedActive,
		models.Completed,
		models.Cancelled,
	} {
		insertTestOrder(t, db, repo, newTestOrder(status))
	}

	count, err := repo.CountTrackedOrders()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	orders, err := repo.GetTrackedOrders(10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
	for _, order := range orders {
		assert.False(t, order.Status.Terminal())
	}
}

func TestOrderRepositoryImpl_ListOrders(t *testing.T) {
	db := setupInMemoryOrderDB(t)
	defer db.Close()
	repo := NewOrderRepository(db)

	cheap := newTestOrder(models.Completed)
	cheap.TotalPrice = 10
	expensive := newTestOrder(models.Completed)
	expensive.TotalPrice = 90
	insertTestOrder(t, db, repo, cheap)
	insertTestOrder(t, db, repo, expensive)

	orders, err := repo.ListOrders(context.Background(), ListOptions{SortKey: "-total_price"})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, expensive.UUID, orders[0].UUID)

	orders, err = repo.ListOrders(context.Background(), ListOptions{SortKey: "total_price", Limit: 1})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, cheap.UUID, orders[0].UUID)

	_, err = repo.ListOrders(context.Background(), ListOptions{SortKey: "no_such_column"})
	assert.Error(t, err)
}

func TestOrderRepositoryImpl_GetOrdersByUserUID(t *testing.T) {
	db := setupInMemoryOrderDB(t)
	defer db.Close()
	repo := NewOrderRepository(db)

	mine := newTestOrder(models.Processing)
	other := newTestOrder(models.Processing)
	insertTestOrder(t, db, repo, mine)
	insertTestOrder(t, db, repo, other)

	orders, err := repo.GetOrdersByUserUID(context.Background(), &mine.UserUUID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, mine.UUID, orders[0].UUID)
}
