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

var affiliateSortKeys = map[string]string{
	"created_at":   "created_at",
	"created_date": "created_at",
	"total_earned": "total_earned",
}

type AffiliateRepository interface {
	Create(ctx context.Context, affiliate *models.Affiliate) error
	GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error)
	GetByReferralCodeTx(ctx context.Context, tx *sqlx.Tx, code string) (*models.Affiliate, error)
	List(ctx context.Context, opts ListOptions) ([]models.Affiliate, error)
	Update(ctx context.Context, affiliate *models.Affiliate) error
	AddEarning(ctx context.Context, tx *sqlx.Tx, earning *models.AffiliateEarning) error
	GetEarning(ctx context.Context, id int64) (*models.AffiliateEarning, error)
	GetEarnings(ctx context.Context, affiliateUUID uuid.UUID) ([]models.AffiliateEarning, error)
	MarkEarningPaid(ctx context.Context, tx *sqlx.Tx, earning *models.AffiliateEarning) error
	GetDB() *sqlx.DB
}

type AffiliateRepositoryImpl struct {
	db *sqlx.DB
}

func NewAffiliateRepository(db *sqlx.DB) *AffiliateRepositoryImpl {
	return &AffiliateRepositoryImpl{db: db}
}

func (ar *AffiliateRepositoryImpl) Create(ctx context.Context, affiliate *models.Affiliate) error {
	query := `INSERT INTO affiliates (uuid, user_uuid, referral_code, commission_rate, total_earned, pending_earnings, is_active, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err := ar.db.ExecContext(ctx, query,
		affiliate.UUID, affiliate.UserUUID, affiliate.ReferralCode, affiliate.CommissionRate,
		affiliate.TotalEarned, affiliate.PendingEarnings, affiliate.IsActive, affiliate.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert affiliate: %w", err)
	}
	return nil
}

func (ar *AffiliateRepositoryImpl) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	affiliate := &models.Affiliate{}
	err := ar.db.GetContext(ctx, affiliate, `SELECT * FROM affiliates WHERE referral_code = $1;`, code)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "Affiliate not found", http.StatusNotFound)
	}
	return affiliate, nil
}

// GetByReferralCodeTx is the in-transaction variant; commission accrual runs
// inside the order status update transaction and must not read through the
// pool while that transaction is open.
func (ar *AffiliateRepositoryImpl) GetByReferralCodeTx(ctx context.Context, tx *sqlx.Tx, code string) (*models.Affiliate, error) {
	affiliate := &models.Affiliate{}
	err := tx.GetContext(ctx, affiliate, `SELECT * FROM affiliates WHERE referral_code = $1;`, code)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "Affiliate not found", http.StatusNotFound)
	}
	return affiliate, nil
}

func (ar *AffiliateRepositoryImpl) List(ctx context.Context, opts ListOptions) ([]models.Affiliate, error) {
	clause, err := orderClause(opts, affiliateSortKeys, "created_at DESC")
	if err != nil {
		return nil, appErrors.NewWithCode(err, "invalid sort key", http.StatusBadRequest)
	}
	affiliates := make([]models.Affiliate, 0)
	if err := ar.db.SelectContext(ctx, &affiliates, `SELECT * FROM affiliates ORDER BY `+clause); err != nil {
		return nil, fmt.Errorf("list affiliates: %w", err)
	}
	return affiliates, nil
}

func (ar *AffiliateRepositoryImpl) Update(ctx context.Context, affiliate *models.Affiliate) error {
	query := `UPDATE affiliates SET commission_rate = $1, is_active = $2 WHERE uuid = $3`
	_, err := ar.db.ExecContext(ctx, query, affiliate.CommissionRate, affiliate.IsActive, affiliate.UUID)
	if err != nil {
		return fmt.Errorf("update affiliate: %w", err)
	}
	return nil
}

// AddEarning records the commission and bumps the affiliate running totals
// in the caller's transaction.
func (ar *AffiliateRepositoryImpl) AddEarning(ctx context.Context, tx *sqlx.Tx, earning *models.AffiliateEarning) error {
	query := `INSERT INTO affiliate_earnings (affiliate_uuid, order_uuid, amount, status, created_at)
			  VALUES ($1, $2, $3, $4, $5) returning id;`
	err := tx.QueryRowContext(ctx, query,
		earning.AffiliateUUID, earning.OrderUUID, earning.Amount, earning.Status, earning.CreatedAt).Scan(&earning.ID)
	if err != nil {
		return fmt.Errorf("insert earning: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE affiliates SET total_earned = total_earned + $1, pending_earnings = pending_earnings + $1 WHERE uuid = $2`,
		earning.Amount, earning.AffiliateUUID)
	if err != nil {
		return fmt.Errorf("update affiliate totals: %w", err)
	}
	return nil
}

func (ar *AffiliateRepositoryImpl) GetEarning(ctx context.Context, id int64) (*models.AffiliateEarning, error) {
	earning := &models.AffiliateEarning{}
	err := ar.db.GetContext(ctx, earning, `SELECT * FROM affiliate_earnings WHERE id = $1;`, id)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "Earning not found", http.StatusNotFound)
	}
	return earning, nil
}

func (ar *AffiliateRepositoryImpl) GetEarnings(ctx context.Context, affiliateUUID uuid.UUID) ([]models.AffiliateEarning, error) {
	earnings := make([]models.AffiliateEarning, 0)
	err := ar.db.SelectContext(ctx, &earnings,
		`SELECT * FROM affiliate_earnings WHERE affiliate_uuid = $1 ORDER BY created_at DESC;`, affiliateUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return earnings, nil
		}
		return nil, fmt.Errorf("read earnings: %w", err)
	}
	return earnings, nil
}

func (ar *AffiliateRepositoryImpl) MarkEarningPaid(ctx context.Context, tx *sqlx.Tx, earning *models.AffiliateEarning) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE affiliate_earnings SET status = $1, paid_at = $2 WHERE id = $3`,
		earning.Status, earning.PaidAt, earning.ID)
	if err != nil {
		return fmt.Errorf("mark earning paid: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE affiliates SET pending_earnings = pending_earnings - $1 WHERE uuid = $2`,
		earning.Amount, earning.AffiliateUUID)
	if err != nil {
		return fmt.Errorf("update pending earnings: %w", err)
	}
	return nil
}

func (ar *AffiliateRepositoryImpl) GetDB() *sqlx.DB {
	return ar.db
}
