package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
)

var couponSortKeys = map[string]string{
	"created_at":   "created_at",
	"created_date": "created_at",
	"code":         "code",
	"used_count":   "used_count",
	"valid_until":  "valid_until",
}

type CouponRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, opts ListOptions) ([]models.Coupon, error)
	Update(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, couponUUID uuid.UUID) error
	IncrementUsage(ctx context.Context, tx *sqlx.Tx, code string) error
}

type CouponRepositoryImpl struct {
	db *sqlx.DB
}

func NewCouponRepository(db *sqlx.DB) *CouponRepositoryImpl {
	return &CouponRepositoryImpl{db: db}
}

func (cr *CouponRepositoryImpl) Create(ctx context.Context, coupon *models.Coupon) error {
	query := `INSERT INTO coupons (uuid, code, discount_type, value, min_order_value, max_uses, used_count,
				valid_from, valid_until, is_active, applicable_services, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`
	_, err := cr.db.ExecContext(ctx, query,
		coupon.UUID, coupon.Code, coupon.DiscountType, coupon.Value, coupon.MinOrderValue, coupon.MaxUses,
		coupon.UsedCount, coupon.ValidFrom, coupon.ValidUntil, coupon.IsActive, coupon.ApplicableServices,
		coupon.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			return appErrors.NewWithCode(err, "coupon code already exists", http.StatusConflict)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func (cr *CouponRepositoryImpl) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	coupon := &models.Coupon{}
	err := cr.db.GetContext(ctx, coupon, `SELECT * FROM coupons WHERE code = $1;`, code)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "Coupon not found", http.StatusNotFound)
	}
	return coupon, nil
}

func (cr *CouponRepositoryImpl) List(ctx context.Context, opts ListOptions) ([]models.Coupon, error) {
	clause, err := orderClause(opts, couponSortKeys, "created_at DESC")
	if err != nil {
		return nil, appErrors.NewWithCode(err, "invalid sort key", http.StatusBadRequest)
	}
	coupons := make([]models.Coupon, 0)
	if err := cr.db.SelectContext(ctx, &coupons, `SELECT * FROM coupons ORDER BY `+clause); err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, nil
}

func (cr *CouponRepositoryImpl) Update(ctx context.Context, coupon *models.Coupon) error {
	query := `UPDATE coupons SET discount_type = $1, value = $2, min_order_value = $3, max_uses = $4,
				valid_from = $5, valid_until = $6, is_active = $7, applicable_services = $8
			  WHERE uuid = $9`
	_, err := cr.db.ExecContext(ctx, query,
		coupon.DiscountType, coupon.Value, coupon.MinOrderValue, coupon.MaxUses,
		coupon.ValidFrom, coupon.ValidUntil, coupon.IsActive, coupon.ApplicableServices, coupon.UUID)
	if err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}
	return nil
}

func (cr *CouponRepositoryImpl) Delete(ctx context.Context, couponUUID uuid.UUID) error {
	_, err := cr.db.ExecContext(ctx, `DELETE FROM coupons WHERE uuid = $1`, couponUUID)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}

// IncrementUsage runs inside the order-creating transaction so a redeemed
// coupon and its order commit together.
func (cr *CouponRepositoryImpl) IncrementUsage(ctx context.Context, tx *sqlx.Tx, code string) error {
	_, err := tx.ExecContext(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	return nil
}
