package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instafly/instafly/internal/app/events"
	"github.com/instafly/instafly/internal/app/metrics"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service/clients"
)

const initOrderServiceDB = `
CREATE TABLE orders
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
CREATE TABLE wallets
(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_uuid VARCHAR NOT NULL UNIQUE,
    balance NUMERIC NOT NULL DEFAULT 0,
    total_spent NUMERIC NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (balance >= 0)
);
CREATE TABLE wallet_transactions
(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_uuid VARCHAR NOT NULL,
    order_uuid VARCHAR,
    type VARCHAR NOT NULL,
    amount NUMERIC NOT NULL,
    balance_before NUMERIC NOT NULL,
    balance_after NUMERIC NOT NULL,
    description VARCHAR NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE services
(
    uuid VARCHAR PRIMARY KEY,
    name VARCHAR NOT NULL,
    platform VARCHAR NOT NULL,
    category VARCHAR NOT NULL DEFAULT '',
    description VARCHAR NOT NULL DEFAULT '',
    quantity INTEGER NOT NULL DEFAULT 0,
    price NUMERIC NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    express_available BOOLEAN NOT NULL DEFAULT FALSE,
    drip_feed_available BOOLEAN NOT NULL DEFAULT FALSE,
    provider_service_id VARCHAR,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE coupons
(
    uuid VARCHAR PRIMARY KEY,
    code VARCHAR NOT NULL UNIQUE,
    discount_type VARCHAR NOT NULL,
    value NUMERIC NOT NULL DEFAULT 0,
    min_order_value NUMERIC NOT NULL DEFAULT 0,
    max_uses INTEGER NOT NULL DEFAULT 0,
    used_count INTEGER NOT NULL DEFAULT 0,
    valid_from TIMESTAMP,
    valid_until TIMESTAMP,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    applicable_services VARCHAR,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE affiliates
(
    uuid VARCHAR PRIMARY KEY,
    user_uuid VARCHAR NOT NULL,
    referral_code VARCHAR NOT NULL UNIQUE,
    commission_rate NUMERIC NOT NULL DEFAULT 0,
    total_earned NUMERIC NOT NULL DEFAULT 0,
    pending_earnings NUMERIC NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE affiliate_earnings
(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    affiliate_uuid VARCHAR NOT NULL,
    order_uuid VARCHAR NOT NULL,
    amount NUMERIC NOT NULL,
    status VARCHAR NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    paid_at TIMESTAMP
);
CREATE TABLE drip_feed_orders
(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_uuid VARCHAR NOT NULL,
    total_quantity INTEGER NOT NULL,
    daily_quantity INTEGER NOT NULL,
    delivered_quantity INTEGER NOT NULL DEFAULT 0,
    next_run_at TIMESTAMP NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE settings
(
    id INTEGER PRIMARY KEY,
    site_name VARCHAR NOT NULL DEFAULT '',
    logo_url VARCHAR NOT NULL DEFAULT '',
    support_whatsapp VARCHAR NOT NULL DEFAULT '',
    mercadopago_public_key VARCHAR NOT NULL DEFAULT '',
    mercadopago_access_token VARCHAR NOT NULL DEFAULT '',
    min_deposit_amount NUMERIC NOT NULL DEFAULT 10,
    vip_tiers TEXT NOT NULL DEFAULT '[]',
    bonus_rules TEXT NOT NULL DEFAULT '[]',
    campaigns TEXT NOT NULL DEFAULT '{}',
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type fakePaymentClient struct {
	calls int
	err   error
}

func (f *fakePaymentClient) CreatePayment(_ context.Context, req clients.PaymentRequest) (*clients.PaymentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &clients.PaymentResponse{
		PaymentID: "mp-" + req.OrderID[:8],
		PixCode:   "00020126580014BR.GOV.BCB.PIX0136" + req.OrderID,
	}, nil
}

type fakeFulfilmentClient struct {
	calls int
}

func (f *fakeFulfilmentClient) DispatchOrder(_ context.Context, req clients.DispatchRequest) (*clients.DispatchResponse, error) {
	f.calls++
	return &clients.DispatchResponse{ProviderOrderID: "prov-" + req.OrderID[:8]}, nil
}

type orderServiceEnv struct {
	db            *sqlx.DB
	service       *OrderServiceImpl
	walletService *WalletServiceImpl
	payment       *fakePaymentClient
	fulfilment    *fakeFulfilmentClient
	walletRepo    repository.WalletRepository
	orderChan     chan models.Order
}

func setupOrderServiceEnv(t *testing.T) *orderServiceEnv {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(initOrderServiceDB)
	require.NoError(t, err)

	orderRepo := repository.NewOrderRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	dripFeedRepo := repository.NewDripFeedRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)

	payment := &fakePaymentClient{}
	fulfilment := &fakeFulfilmentClient{}
	om := metrics.NewOrderMetrics(prometheus.NewRegistry())
	orderChan := make(chan models.Order, 100)

	walletService := NewWalletService(walletRepo, orderRepo, settingsRepo, payment, om)
	affiliateService := NewAffiliateService(affiliateRepo)
	orderService := NewOrderService(orderRepo, serviceRepo, couponRepo, dripFeedRepo, settingsRepo,
		walletService, affiliateService, payment, fulfilment, events.NoopPublisher{}, om, orderChan)

	return &orderServiceEnv{
		db:            db,
		service:       orderService,
		walletService: walletService,
		payment:       payment,
		fulfilment:    fulfilment,
		walletRepo:    walletRepo,
		orderChan:     orderChan,
	}
}

func (env *orderServiceEnv) createUserWithBalance(t *testing.T, balance float64) *models.User {
	t.Helper()
	user := &models.User{
		UUID:     uuid.New(),
		Email:    "customer@example.com",
		Whatsapp: "+5511999999999",
	}
	tx, err := env.db.Beginx()
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Second)
	wallet := &models.Wallet{UserUUID: user.UUID, Balance: balance, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, env.walletRepo.CreateWallet(context.Background(), tx, wallet))
	require.NoError(t, tx.Commit())
	return user
}

func (env *orderServiceEnv) createService(t *testing.T, price float64) *models.Service {
	t.Helper()
	providerID := "prov-svc-1"
	svc := &models.Service{
		UUID:              uuid.New(),
		Name:              "1000 Seguidores",
		Platform:          "instagram",
		Category:          "followers",
		Quantity:          1000,
		Price:             price,
		IsActive:          true,
		DripFeedAvailable: true,
		ProviderServiceID: &providerID,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repository.NewServiceRepository(env.db).Create(context.Background(), svc))
	return svc
}

func (env *orderServiceEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var count int
	require.NoError(t, env.db.Get(&count, "SELECT count(*) FROM "+table))
	return count
}

func TestOrderServiceImpl_PayWithWalletInsufficientBalance(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 50)
	svc := env.createService(t, 60)

	_, err := env.service.PayWithWallet(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "insufficient wallet balance")

	// A short balance leaves no trace at all.
	assert.Zero(t, env.countRows(t, "orders"))
	assert.Zero(t, env.countRows(t, "wallet_transactions"))
	wallet, err := env.walletRepo.GetWallet(context.Background(), &user.UUID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, wallet.Balance)
	assert.Zero(t, env.fulfilment.calls)
}

func TestOrderServiceImpl_PayWithWallet(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 100)
	svc := env.createService(t, 60)

	order, err := env.service.PayWithWallet(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
	})
	require.NoError(t, err)

	assert.Equal(t, models.Processing, order.Status)
	assert.Equal(t, models.PaymentMethodWallet, order.PaymentMethod)
	assert.True(t, order.WalletPaid)
	assert.Equal(t, 60.0, order.TotalPrice)

	wallet, err := env.walletRepo.GetWallet(context.Background(), &user.UUID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, wallet.Balance)
	assert.Equal(t, 60.0, wallet.TotalSpent)

	assert.Equal(t, 1, env.countRows(t, "wallet_transactions"))
	assert.Equal(t, 1, env.fulfilment.calls)
	assert.Zero(t, env.payment.calls, "wallet orders never touch the payment provider")

	// The order is handed to the status sync cycle.
	select {
	case tracked := <-env.orderChan:
		assert.Equal(t, order.UUID, tracked.UUID)
	default:
		t.Fatal("expected the order on the sync channel")
	}
}

func TestOrderServiceImpl_PayWithWalletDripFeed(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 100)
	svc := env.createService(t, 60)

	order, err := env.service.PayWithWallet(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
		DripFeed:    true,
		DripDays:    10,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DripFeedActive, order.Status)
	assert.Equal(t, 1, env.countRows(t, "drip_feed_orders"))
	assert.Zero(t, env.fulfilment.calls, "drip feed delivers in portions, not all at once")

	var daily int
	require.NoError(t, env.db.Get(&daily, "SELECT daily_quantity FROM drip_feed_orders"))
	assert.Equal(t, 100, daily)
}

func TestOrderServiceImpl_CreateOrderPix(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 0)
	svc := env.createService(t, 49.9)

	checkout, err := env.service.CreateOrder(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PendingPayment, checkout.Order.Status)
	assert.Equal(t, models.PaymentMethodPix, checkout.Order.PaymentMethod)
	require.NotNil(t, checkout.Order.PaymentID)
	require.NotNil(t, checkout.Charge)
	assert.NotEmpty(t, checkout.Charge.PixCode)
	assert.NotEmpty(t, checkout.Charge.QRCodeBase64)
	assert.Equal(t, 1, env.payment.calls)

	stored, err := repository.NewOrderRepository(env.db).GetOrderByPaymentID(context.Background(), *checkout.Order.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, checkout.Order.UUID, stored.UUID)
}

func TestOrderServiceImpl_ConfirmPayment(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 0)
	svc := env.createService(t, 49.9)

	checkout, err := env.service.CreateOrder(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
	})
	require.NoError(t, err)
	paymentID := *checkout.Order.PaymentID

	require.NoError(t, env.service.ConfirmPayment(context.Background(), paymentID, true))

	order, err := env.service.GetOrderByUUID(context.Background(), checkout.Order.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.Processing, order.Status)
	assert.Equal(t, 1, env.fulfilment.calls)

	// A replayed webhook must be a no-op.
	require.NoError(t, env.service.ConfirmPayment(context.Background(), paymentID, true))
	assert.Equal(t, 1, env.fulfilment.calls)
}

func TestOrderServiceImpl_ConfirmPaymentKeepsRequestedDripDays(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 0)
	svc := env.createService(t, 49.9)

	checkout, err := env.service.CreateOrder(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
		DripFeed:    true,
		DripDays:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, checkout.Order.DripDays)

	require.NoError(t, env.service.ConfirmPayment(context.Background(), *checkout.Order.PaymentID, true))

	order, err := env.service.GetOrderByUUID(context.Background(), checkout.Order.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.DripFeedActive, order.Status)

	// 1000 over the 10 days the customer chose, not the 7-day default.
	var daily int
	require.NoError(t, env.db.Get(&daily, "SELECT daily_quantity FROM drip_feed_orders"))
	assert.Equal(t, 100, daily)
}

func TestWalletServiceImpl_DepositCreditsOnWebhook(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 0)

	settingsRepo := repository.NewSettingsRepository(env.db)
	settings, err := settingsRepo.Get(context.Background())
	require.NoError(t, err)
	settings.BonusRules = models.BonusRuleList{{DepositAmount: 50, BonusPercentage: 10}}
	require.NoError(t, settingsRepo.Update(context.Background(), settings))

	charge, err := env.walletService.CreateDeposit(context.Background(), user, 50)
	require.NoError(t, err)
	require.NotEmpty(t, charge.PaymentID)

	// Nothing is credited until the provider confirms.
	wallet, err := env.walletRepo.GetWallet(context.Background(), &user.UUID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, wallet.Balance)

	require.NoError(t, env.service.ConfirmPayment(context.Background(), charge.PaymentID, true))

	wallet, err = env.walletRepo.GetWallet(context.Background(), &user.UUID)
	require.NoError(t, err)
	assert.Equal(t, 55.0, wallet.Balance, "50 deposited plus the 10 percent bonus")

	transactions, err := env.walletRepo.GetTransactions(context.Background(), &user.UUID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, models.TransactionDeposit, transactions[0].Type)
	assert.Equal(t, 0.0, transactions[0].BalanceBefore)
	assert.Equal(t, 55.0, transactions[0].BalanceAfter)

	// A replayed webhook must not credit twice.
	require.NoError(t, env.service.ConfirmPayment(context.Background(), charge.PaymentID, true))
	wallet, err = env.walletRepo.GetWallet(context.Background(), &user.UUID)
	require.NoError(t, err)
	assert.Equal(t, 55.0, wallet.Balance)
}

func TestOrderServiceImpl_UpdateStatusRejectsBackwardMove(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 100)
	svc := env.createService(t, 60)

	order, err := env.service.PayWithWallet(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
	})
	require.NoError(t, err)

	err = env.service.UpdateStatus(context.Background(), order, models.PendingPayment)
	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot move order")
	assert.Equal(t, models.Processing, order.Status)
}

func TestOrderServiceImpl_CompletionRecordsAffiliateCommission(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 100)
	svc := env.createService(t, 60)

	affiliateRepo := repository.NewAffiliateRepository(env.db)
	affiliate := &models.Affiliate{
		UUID:           uuid.New(),
		UserUUID:       uuid.New(),
		ReferralCode:   "PARTNER10",
		CommissionRate: 10,
		IsActive:       true,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, affiliateRepo.Create(context.Background(), affiliate))

	order, err := env.service.PayWithWallet(context.Background(), user, CreateOrderInput{
		ServiceUUID:   svc.UUID,
		TargetURL:     "https://instagram.com/someprofile",
		AffiliateCode: "PARTNER10",
	})
	require.NoError(t, err)

	require.NoError(t, env.service.UpdateStatus(context.Background(), order, models.Completed))

	earnings, err := affiliateRepo.GetEarnings(context.Background(), affiliate.UUID)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, 6.0, earnings[0].Amount, "10 percent of the 60.00 order")
	assert.Equal(t, models.EarningPending, earnings[0].Status)

	got, err := affiliateRepo.GetByReferralCode(context.Background(), "PARTNER10")
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.PendingEarnings)
	assert.Equal(t, 6.0, got.TotalEarned)
}

func TestOrderServiceImpl_RefundReturnsMoneyToWallet(t *testing.T) {
	env := setupOrderServiceEnv(t)
	user := env.createUserWithBalance(t, 100)
	svc := env.createService(t, 60)

	order, err := env.service.PayWithWallet(context.Background(), user, CreateOrderInput{
		ServiceUUID: svc.UUID,
		TargetURL:   "https://instagram.com/someprofile",
	})
	require.NoError(t, err)

	require.NoError(t, env.service.UpdateStatus(context.Background(), order, models.Refunded))

	wallet, err := env.walletRepo.GetWallet(context.Background(), &user.UUID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, wallet.Balance)

	transactions, err := env.walletRepo.GetTransactions(context.Background(), &user.UUID)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	for _, wtx := range transactions {
		if wtx.Type == models.TransactionRefund {
			assert.Equal(t, 40.0, wtx.BalanceBefore)
			assert.Equal(t, 100.0, wtx.BalanceAfter)
		}
	}
}
