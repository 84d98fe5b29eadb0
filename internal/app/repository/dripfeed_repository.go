package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/instafly/instafly/internal/app/models"
)

type DripFeedRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, dfo *models.DripFeedOrder) error
	GetDue(ctx context.Context, now time.Time) ([]models.DripFeedOrder, error)
	List(ctx context.Context) ([]models.DripFeedOrder, error)
	Update(ctx context.Context, tx *sqlx.Tx, dfo *models.DripFeedOrder) error
	GetDB() *sqlx.DB
}

type DripFeedRepositoryImpl struct {
	db *sqlx.DB
}

func NewDripFeedRepository(db *sqlx.DB) *DripFeedRepositoryImpl {
	return &DripFeedRepositoryImpl{db: db}
}

func (dr *DripFeedRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, dfo *models.DripFeedOrder) error {
	query := `INSERT INTO drip_feed_orders (order_uuid, total_quantity, daily_quantity, delivered_quantity, next_run_at, is_active, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7) returning id;`
	err := tx.QueryRowContext(ctx, query,
		dfo.OrderUUID, dfo.TotalQuantity, dfo.DailyQuantity, dfo.DeliveredQuantity,
		dfo.NextRunAt, dfo.IsActive, dfo.CreatedAt).Scan(&dfo.ID)
	if err != nil {
		return fmt.Errorf("insert drip feed order: %w", err)
	}
	return nil
}

func (dr *DripFeedRepositoryImpl) GetDue(ctx context.Context, now time.Time) ([]models.DripFeedOrder, error) {
	due := make([]models.DripFeedOrder, 0)
	err := dr.db.SelectContext(ctx, &due,
		`SELECT * FROM drip_feed_orders WHERE is_active = TRUE AND next_run_at <= $1;`, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return due, nil
		}
		return nil, fmt.Errorf("read due drip feeds: %w", err)
	}
	return due, nil
}

func (dr *DripFeedRepositoryImpl) List(ctx context.Context) ([]models.DripFeedOrder, error) {
	all := make([]models.DripFeedOrder, 0)
	err := dr.db.SelectContext(ctx, &all, `SELECT * FROM drip_feed_orders ORDER BY created_at DESC;`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return all, nil
		}
		return nil, fmt.Errorf("list drip feeds: %w", err)
	}
	return all, nil
}

func (dr *DripFeedRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, dfo *models.DripFeedOrder) error {
	query := `UPDATE drip_feed_orders SET delivered_quantity = $1, next_run_at = $2, is_active = $3 WHERE id = $4`
	_, err := tx.ExecContext(ctx, query, dfo.DeliveredQuantity, dfo.NextRunAt, dfo.IsActive, dfo.ID)
	if err != nil {
		return fmt.Errorf("update drip feed order: %w", err)
	}
	return nil
}

func (dr *DripFeedRepositoryImpl) GetDB() *sqlx.DB {
	return dr.db
}
