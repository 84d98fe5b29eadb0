package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
)

type AffiliateService interface {
	Create(ctx context.Context, userUID uuid.UUID, commissionRate float64) (*models.Affiliate, error)
	List(ctx context.Context, opts repository.ListOptions) ([]models.Affiliate, error)
	Update(ctx context.Context, affiliate *models.Affiliate) error
	GetEarnings(ctx context.Context, affiliateUUID uuid.UUID) ([]models.AffiliateEarning, error)
	RecordCommission(ctx context.Context, tx *sqlx.Tx, order *models.Order) error
	MarkEarningPaid(ctx context.Context, earningID int64) error
}

type AffiliateServiceImpl struct {
	affiliateRepo repository.AffiliateRepository
}

func NewAffiliateService(affiliateRepo repository.AffiliateRepository) *AffiliateServiceImpl {
	return &AffiliateServiceImpl{affiliateRepo: affiliateRepo}
}

func (as *AffiliateServiceImpl) Create(ctx context.Context, userUID uuid.UUID, commissionRate float64) (*models.Affiliate, error) {
	affiliate := &models.Affiliate{
		UUID:           uuid.New(),
		UserUUID:       userUID,
		ReferralCode:   newReferralCode(),
		CommissionRate: commissionRate,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	if err := as.affiliateRepo.Create(ctx, affiliate); err != nil {
		return nil, err
	}
	return affiliate, nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (as *AffiliateServiceImpl) List(ctx context.Context, opts repository.ListOptions) ([]models.Affiliate, error) {
	return as.affiliateRepo.List(ctx, opts)
}

func (as *AffiliateServiceImpl) Update(ctx context.Context, affiliate *models.Affiliate) error {
	return as.affiliateRepo.Update(ctx, affiliate)
}

func (as *AffiliateServiceImpl) GetEarnings(ctx context.Context, affiliateUUID uuid.UUID) ([]models.AffiliateEarning, error) {
	return as.affiliateRepo.GetEarnings(ctx, affiliateUUID)
}

// RecordCommission adds a pending earning for the order's referring
// affiliate. Orders without a referral, or referrals that no longer resolve,
// are skipped silently.
func (as *AffiliateServiceImpl) RecordCommission(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	if order.AffiliateCode == nil || *order.AffiliateCode == "" {
		return nil
	}
	affiliate, err := as.affiliateRepo.GetByReferralCodeTx(ctx, tx, *order.AffiliateCode)
	if err != nil {
		return nil
	}
	if !affiliate.IsActive {
		return nil
	}
	amount := order.TotalPrice * affiliate.CommissionRate / 100
	if amount <= 0 {
		return nil
	}
	return as.affiliateRepo.AddEarning(ctx, tx, &models.AffiliateEarning{
		AffiliateUUID: affiliate.UUID,
		OrderUUID:     order.UUID,
		Amount:        amount,
		Status:        models.EarningPending,
		CreatedAt:     time.Now(),
	})
}

func (as *AffiliateServiceImpl) MarkEarningPaid(ctx context.Context, earningID int64) error {
	earning, err := as.affiliateRepo.GetEarning(ctx, earningID)
	if err != nil {
		return err
	}
	if earning.Status == models.EarningPaid {
		msg := "earning already paid"
		return appErrors.NewWithCode(errors.New(msg), msg, http.StatusConflict)
	}

	now := time.Now()
	earning.Status = models.EarningPaid
	earning.PaidAt = &now

	tx, err := as.affiliateRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := as.affiliateRepo.MarkEarningPaid(ctx, tx, earning); err != nil {
		return err
	}
	return tx.Commit()
}
