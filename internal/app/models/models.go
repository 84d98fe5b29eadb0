package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type (
	User struct {
		UUID         uuid.UUID  `db:"uuid" json:"uuid"`
		Email        string     `db:"email" json:"email"`
		PasswordHash string     `db:"password_hash" json:"-"`
		FullName     string     `db:"full_name" json:"full_name"`
		Whatsapp     string     `db:"whatsapp" json:"whatsapp"`
		IsAdmin      bool       `db:"is_admin" json:"is_admin"`
		BirthDate    *time.Time `db:"birth_date" json:"birth_date"`
		CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	}

	// Service is a catalog item: a quantity of followers/likes/views on a
	// given platform sold at a fixed price.
	Service struct {
		UUID              uuid.UUID `db:"uuid" json:"uuid"`
		Name              string    `db:"name" json:"name"`
		Platform          string    `db:"platform" json:"platform"`
		Category          string    `db:"category" json:"category"`
		Description       string    `db:"description" json:"description"`
		Quantity          int       `db:"quantity" json:"quantity"`
		Price             float64   `db:"price" json:"price"`
		IsActive          bool      `db:"is_active" json:"is_active"`
		ExpressAvailable  bool      `db:"express_available" json:"express_available"`
		DripFeedAvailable bool      `db:"drip_feed_available" json:"drip_feed_available"`
		ProviderServiceID *string   `db:"provider_service_id" json:"provider_service_id"`
		CreatedAt         time.Time `db:"created_at" json:"created_at"`
	}

	Order struct {
		UUID             uuid.UUID  `db:"uuid" json:"uuid"`
		DisplayID        string     `db:"display_id" json:"display_id"`
		UserUUID         uuid.UUID  `db:"user_uuid" json:"user_uuid"`
		ServiceUUID      *uuid.UUID `db:"service_uuid" json:"service_uuid"` // nil for wallet deposits
		TargetURL        string     `db:"target_url" json:"target_url"`
		Quantity         int        `db:"quantity" json:"quantity"`
		TotalPrice       float64    `db:"total_price" json:"total_price"`
		Status           Status     `db:"status" json:"status"`
		PaymentMethod    string     `db:"payment_method" json:"payment_method"` // pix or wallet
		PaymentID        *string    `db:"payment_id" json:"payment_id"`
		ProviderOrderID  *string    `db:"provider_order_id" json:"provider_order_id"`
		ProviderStatus   *string    `db:"provider_status" json:"provider_status"`
		CustomerEmail    string     `db:"customer_email" json:"customer_email"`
		CustomerWhatsapp string     `db:"customer_whatsapp" json:"customer_whatsapp"`
		CouponCode       *string    `db:"coupon_code" json:"coupon_code"`
		DiscountAmount   float64    `db:"discount_amount" json:"discount_amount"`
		AffiliateCode    *string    `db:"affiliate_code" json:"affiliate_code"`
		IsExpress        bool       `db:"is_express" json:"is_express"`
		IsDripFeed       bool       `db:"is_drip_feed" json:"is_drip_feed"`
		DripDays         int        `db:"drip_days" json:"drip_days"`
		IsDeposit        bool       `db:"is_deposit" json:"is_deposit"`
		WalletPaid       bool       `db:"wallet_paid" json:"wallet_paid"`
		CreatedAt        time.Time  `db:"created_at" json:"created_at"`
		UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	}

	Wallet struct {
		ID         int64     `db:"id" json:"id"`
		UserUUID   uuid.UUID `db:"user_uuid" json:"user_uuid"`
		Balance    float64   `db:"balance" json:"balance"`
		TotalSpent float64   `db:"total_spent" json:"total_spent"`
		CreatedAt  time.Time `db:"created_at" json:"created_at"`
		UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	}

	// WalletTransaction is an append-only ledger row.
	WalletTransaction struct {
		ID            int64      `db:"id" json:"id"`
		UserUUID      uuid.UUID  `db:"user_uuid" json:"user_uuid"`
		OrderUUID     *uuid.UUID `db:"order_uuid" json:"order_uuid"`
		Type          string     `db:"type" json:"type"` // deposit, purchase, refund
		Amount        float64    `db:"amount" json:"amount"`
		BalanceBefore float64    `db:"balance_before" json:"balance_before"`
		BalanceAfter  float64    `db:"balance_after" json:"balance_after"`
		Description   string     `db:"description" json:"description"`
		CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	}

	Coupon struct {
		UUID               uuid.UUID      `db:"uuid" json:"uuid"`
		Code               string         `db:"code" json:"code"`
		DiscountType       string         `db:"discount_type" json:"discount_type"` // percentage, fixed_amount, quantity_bonus
		Value              float64        `db:"value" json:"value"`
		MinOrderValue      float64        `db:"min_order_value" json:"min_order_value"`
		MaxUses            int            `db:"max_uses" json:"max_uses"` // 0 means unlimited
		UsedCount          int            `db:"used_count" json:"used_count"`
		ValidFrom          *time.Time     `db:"valid_from" json:"valid_from"`
		ValidUntil         *time.Time     `db:"valid_until" json:"valid_until"`
		IsActive           bool           `db:"is_active" json:"is_active"`
		ApplicableServices pq.StringArray `db:"applicable_services" json:"applicable_services"` // empty means all
		CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	}

	Affiliate struct {
		UUID            uuid.UUID `db:"uuid" json:"uuid"`
		UserUUID        uuid.UUID `db:"user_uuid" json:"user_uuid"`
		ReferralCode    string    `db:"referral_code" json:"referral_code"`
		CommissionRate  float64   `db:"commission_rate" json:"commission_rate"` // percentage, e.g. 10 means 10%
		TotalEarned     float64   `db:"total_earned" json:"total_earned"`
		PendingEarnings float64   `db:"pending_earnings" json:"pending_earnings"`
		IsActive        bool      `db:"is_active" json:"is_active"`
		CreatedAt       time.Time `db:"created_at" json:"created_at"`
	}

	AffiliateEarning struct {
		ID            int64      `db:"id" json:"id"`
		AffiliateUUID uuid.UUID  `db:"affiliate_uuid" json:"affiliate_uuid"`
		OrderUUID     uuid.UUID  `db:"order_uuid" json:"order_uuid"`
		Amount        float64    `db:"amount" json:"amount"`
		Status        string     `db:"status" json:"status"` // pending, paid
		CreatedAt     time.Time  `db:"created_at" json:"created_at"`
		PaidAt        *time.Time `db:"paid_at" json:"paid_at"`
	}

	DripFeedOrder struct {
		ID                int64     `db:"id" json:"id"`
		OrderUUID         uuid.UUID `db:"order_uuid" json:"order_uuid"`
		TotalQuantity     int       `db:"total_quantity" json:"total_quantity"`
		DailyQuantity     int       `db:"daily_quantity" json:"daily_quantity"`
		DeliveredQuantity int       `db:"delivered_quantity" json:"delivered_quantity"`
		NextRunAt         time.Time `db:"next_run_at" json:"next_run_at"`
		IsActive          bool      `db:"is_active" json:"is_active"`
		CreatedAt         time.Time `db:"created_at" json:"created_at"`
	}

	Settings struct {
		ID                     int64           `db:"id" json:"id"`
		SiteName               string          `db:"site_name" json:"site_name"`
		LogoURL                string          `db:"logo_url" json:"logo_url"`
		SupportWhatsapp        string          `db:"support_whatsapp" json:"support_whatsapp"`
		MercadoPagoPublicKey   string          `db:"mercadopago_public_key" json:"mercadopago_public_key"`
		MercadoPagoAccessToken string          `db:"mercadopago_access_token" json:"-"`
		MinDepositAmount       float64         `db:"min_deposit_amount" json:"min_deposit_amount"`
		VipTiers               VipTierList     `db:"vip_tiers" json:"vip_tiers"`
		BonusRules             BonusRuleList   `db:"bonus_rules" json:"bonus_rules"`
		Campaigns              CampaignConfigs `db:"campaigns" json:"campaigns"`
		UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
	}

	VipTier struct {
		Name               string  `json:"name"`
		MinSpent           float64 `json:"min_spent"`
		DiscountPercentage float64 `json:"discount_percentage"`
		Color              string  `json:"color"`
	}

	BonusRule struct {
		DepositAmount   float64 `json:"deposit_amount"`
		BonusPercentage float64 `json:"bonus_percentage"`
	}

	// CampaignConfig parameterizes one notification campaign. Which
	// customers actually qualify is decided by an external scheduler; this
	// service only stores the knobs and fires test sends.
	CampaignConfig struct {
		Enabled         bool    `json:"enabled"`
		DelayHours      int     `json:"delay_hours,omitempty"`
		DelayDays       int     `json:"delay_days,omitempty"`
		MinSpent        float64 `json:"min_spent,omitempty"`
		FrequencyDays   int     `json:"frequency_days,omitempty"`
		CouponCode      string  `json:"coupon_code,omitempty"`
		MessageTemplate string  `json:"message_template,omitempty"`
	}

	VipTierList     []VipTier
	BonusRuleList   []BonusRule
	CampaignConfigs map[string]CampaignConfig
)

const (
	TransactionDeposit  = "deposit"
	TransactionPurchase = "purchase"
	TransactionRefund   = "refund"
)

const (
	DiscountPercentage    = "percentage"
	DiscountFixedAmount   = "fixed_amount"
	DiscountQuantityBonus = "quantity_bonus"
)

const (
	EarningPending = "pending"
	EarningPaid    = "paid"
)

const (
	PaymentMethodPix    = "pix"
	PaymentMethodWallet = "wallet"
)

// Campaign names understood by the notification scheduler.
const (
	CampaignAbandonedCart = "abandoned_cart"
	CampaignReactivation  = "reactivation"
	CampaignVipPromo      = "vip_promo"
	CampaignUpsell        = "upsell"
	CampaignWinback       = "winback"
	CampaignBirthday      = "birthday"
)

func CampaignNames() []string {
	return []string{
		CampaignAbandonedCart,
		CampaignReactivation,
		CampaignVipPromo,
		CampaignUpsell,
		CampaignWinback,
		CampaignBirthday,
	}
}

type Status string

func (s Status) String() string {
	return string(s)
}

const (
	PendingPayment Status = "pending_payment"
	Processing     Status = "processing"
	DripFeedActive Status = "drip_feed_active"
	Partial        Status = "partial"
	Completed      Status = "completed"
	Cancelled      Status = "cancelled"
	Refunded       Status = "refunded"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Cancelled, Refunded:
		return true
	}
	return false
}

// jsonColumn implements the sqlx Valuer/Scanner pair for JSONB columns.
func jsonColumnValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonColumnScan(src, dst any) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

func (l VipTierList) Value() (driver.Value, error)     { return jsonColumnValue(l) }
func (l *VipTierList) Scan(src any) error              { return jsonColumnScan(src, l) }
func (l BonusRuleList) Value() (driver.Value, error)   { return jsonColumnValue(l) }
func (l *BonusRuleList) Scan(src any) error            { return jsonColumnScan(src, l) }
func (c CampaignConfigs) Value() (driver.Value, error) { return jsonColumnValue(c) }
func (c *CampaignConfigs) Scan(src any) error          { return jsonColumnScan(src, c) }
