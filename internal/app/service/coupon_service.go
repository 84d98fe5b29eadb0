package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
)

// Display states a coupon can be in; expiry wins over the active flag.
const (
	CouponActive    = "active"
	CouponInactive  = "inactive"
	CouponExpired   = "expired"
	CouponExhausted = "exhausted"
	CouponScheduled = "scheduled"
)

type (
	CouponService interface {
		Validate(ctx context.Context, code string, serviceUUID string, orderValue float64) (*models.Coupon, error)
		List(ctx context.Context, opts repository.ListOptions) ([]models.Coupon, error)
		Create(ctx context.Context, coupon *models.Coupon) error
		Update(ctx context.Context, coupon *models.Coupon) error
		Delete(ctx context.Context, coupon *models.Coupon) error
	}

	CouponServiceImpl struct {
		couponRepo repository.CouponRepository
	}
)

func NewCouponService(couponRepo repository.CouponRepository) *CouponServiceImpl {
	return &CouponServiceImpl{couponRepo: couponRepo}
}

// CouponState classifies a coupon for display at a point in time.
func CouponState(coupon *models.Coupon, now time.Time) string {
	if coupon.ValidUntil != nil && coupon.ValidUntil.Before(now) {
		return CouponExpired
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return CouponExhausted
	}
	if !coupon.IsActive {
		return CouponInactive
	}
	if coupon.ValidFrom != nil && coupon.ValidFrom.After(now) {
		return CouponScheduled
	}
	return CouponActive
}

// EvaluateCoupon is the authoritative redemption check.
func EvaluateCoupon(coupon *models.Coupon, serviceUUID string, orderValue float64, now time.Time) error {
	reject := func(msg string) error {
		return appErrors.NewWithCode(errors.New(msg), msg, http.StatusUnprocessableEntity)
	}
	switch CouponState(coupon, now) {
	case CouponExpired:
		return reject("coupon expired")
	case CouponExhausted:
		return reject("coupon usage limit reached")
	case CouponInactive:
		return reject("coupon is not active")
	case CouponScheduled:
		return reject("coupon is not valid yet")
	}
	if orderValue < coupon.MinOrderValue {
		return reject("order value below coupon minimum")
	}
	if len(coupon.ApplicableServices) > 0 {
		found := false
		for _, id := range coupon.ApplicableServices {
			if id == serviceUUID {
				found = true
				break
			}
		}
		if !found {
			return reject("coupon not applicable to this service")
		}
	}
	return nil
}

// ApplyCoupon returns the price discount and the extra quantity the coupon
// grants. Discounts never exceed the order value.
func ApplyCoupon(coupon *models.Coupon, orderValue float64, quantity int) (discount float64, bonusQuantity int) {
	switch coupon.DiscountType {
	case models.DiscountPercentage:
		discount = orderValue * coupon.Value / 100
	case models.DiscountFixedAmount:
		discount = coupon.Value
	case models.DiscountQuantityBonus:
		bonusQuantity = int(float64(quantity) * coupon.Value / 100)
	}
	if discount > orderValue {
		discount = orderValue
	}
	return discount, bonusQuantity
}

func (cs *CouponServiceImpl) Validate(ctx context.Context, code string, serviceUUID string, orderValue float64) (*models.Coupon, error) {
	coupon, err := cs.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := EvaluateCoupon(coupon, serviceUUID, orderValue, time.Now()); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (cs *CouponServiceImpl) List(ctx context.Context, opts repository.ListOptions) ([]models.Coupon, error) {
	return cs.couponRepo.List(ctx, opts)
}

func (cs *CouponServiceImpl) Create(ctx context.Context, coupon *models.Coupon) error {
	return cs.couponRepo.Create(ctx, coupon)
}

func (cs *CouponServiceImpl) Update(ctx context.Context, coupon *models.Coupon) error {
	return cs.couponRepo.Update(ctx, coupon)
}

func (cs *CouponServiceImpl) Delete(ctx context.Context, coupon *models.Coupon) error {
	return cs.couponRepo.Delete(ctx, coupon.UUID)
}
