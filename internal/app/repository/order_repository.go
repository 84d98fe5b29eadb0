package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
)

// orderSortKeys whitelists the sortable order columns; created_date is the
// alias the original admin screens used for created_at.
var orderSortKeys = map[string]string{
	"created_at":   "created_at",
	"created_date": "created_at",
	"updated_at":   "updated_at",
	"total_price":  "total_price",
	"status":       "status",
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error
	GetOrderByUUID(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
	GetOrderByDisplayID(ctx context.Context, displayID string) (*models.Order, error)
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	GetOrdersByUserUID(ctx context.Context, userUID *uuid.UUID) ([]models.Order, error)
	ListOrders(ctx context.Context, opts ListOptions) ([]models.Order, error)
	UpdateOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error
	CountTrackedOrders() (int, error)
	GetTrackedOrders(limit int, offset int) ([]models.Order, error)
	GetDB() *sqlx.DB
}

type OrderRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepositoryImpl {
	return &OrderRepositoryImpl{db: db}
}

func (or *OrderRepositoryImpl) CreateOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `INSERT INTO orders (uuid, display_id, user_uuid, service_uuid, target_url, quantity, total_price,
				status, payment_method, payment_id, provider_order_id, provider_status,
				customer_email, customer_whatsapp, coupon_code, discount_amount, affiliate_code,
				is_express, is_drip_feed, drip_days, is_deposit, wallet_paid, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24);`
	_, err := tx.ExecContext(ctx, query,
		order.UUID, order.DisplayID, order.UserUUID, order.ServiceUUID, order.TargetURL, order.Quantity,
		order.TotalPrice, order.Status.String(), order.PaymentMethod, order.PaymentID, order.ProviderOrderID,
		order.ProviderStatus, order.CustomerEmail, order.CustomerWhatsapp, order.CouponCode, order.DiscountAmount,
		order.AffiliateCode, order.IsExpress, order.IsDripFeed, order.DripDays, order.IsDeposit, order.WalletPaid,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (or *OrderRepositoryImpl) GetOrderByUUID(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	return or.getOne(ctx, `SELECT * FROM orders WHERE uuid = $1;`, orderUUID)
}

func (or *OrderRepositoryImpl) GetOrderByDisplayID(ctx context.Context, displayID string) (*models.Order, error) {
	return or.getOne(ctx, `SELECT * FROM orders WHERE display_id = $1;`, displayID)
}

func (or *OrderRepositoryImpl) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return or.getOne(ctx, `SELECT * FROM orders WHERE payment_id = $1;`, paymentID)
}

func (or *OrderRepositoryImpl) getOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	order := &models.Order{}
	err := or.db.GetContext(ctx, order, query, arg)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "Order not found", http.StatusNotFound)
	}
	return order, nil
}

func (or *OrderRepositoryImpl) GetOrdersByUserUID(ctx context.Context, userUID *uuid.UUID) ([]models.Order, error) {
	query := `SELECT * FROM orders WHERE user_uuid = $1 ORDER BY created_at DESC;`
	orders := make([]models.Order, 0)
	err := or.db.SelectContext(ctx, &orders, query, userUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orders, nil
		}
		return nil, fmt.Errorf("read user orders: %w", err)
	}
	return orders, nil
}

func (or *OrderRepositoryImpl) ListOrders(ctx context.Context, opts ListOptions) ([]models.Order, error) {
	clause, err := orderClause(opts, orderSortKeys, "created_at DESC")
	if err != nil {
		return nil, appErrors.NewWithCode(err, "invalid sort key", http.StatusBadRequest)
	}
	query := `SELECT * FROM orders ORDER BY ` + clause
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, opts.Limit)
	}
	orders := make([]models.Order, 0)
	if err := or.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (or *OrderRepositoryImpl) UpdateOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `UPDATE orders SET status = $1, payment_id = $2, provider_order_id = $3, provider_status = $4,
				wallet_paid = $5, updated_at = $6 WHERE uuid = $7`
	_, err := tx.ExecContext(ctx, query,
		order.Status.String(), order.PaymentID, order.ProviderOrderID, order.ProviderStatus,
		order.WalletPaid, order.UpdatedAt, order.UUID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// Tracked orders are the ones the status-sync worker keeps re-checking.
const trackedStatuses = `status = 'pending_payment' OR status = 'processing' OR status = 'drip_feed_active'`

func (or *OrderRepositoryImpl) CountTrackedOrders() (int, error) {
	var count int
	err := or.db.Get(&count, `SELECT count(*) FROM orders WHERE `+trackedStatuses)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (or *OrderRepositoryImpl) GetTrackedOrders(limit int, offset int) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	err := or.db.Select(&orders, `SELECT * FROM orders WHERE `+trackedStatuses+` LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orders, nil
		}
		return nil, fmt.Errorf("read tracked orders: %w", err)
	}
	return orders, nil
}

func (or *OrderRepositoryImpl) GetDB() *sqlx.DB {
	return or.db
}
