package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/events"
	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/metrics"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/payments"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service/clients"
)

type (
	CreateOrderInput struct {
		ServiceUUID   uuid.UUID
		TargetURL     string
		CouponCode    string
		AffiliateCode string
		Express       bool
		DripFeed      bool
		DripDays      int
	}

	// Checkout is the created order plus the PIX charge the customer pays.
	Checkout struct {
		Order  *models.Order
		Charge *payments.PixCharge
	}

	FulfilmentClient interface {
		DispatchOrder(ctx context.Context, req clients.DispatchRequest) (*clients.DispatchResponse, error)
	}

	OrderService interface {
		CreateOrder(ctx context.Context, user *models.User, input CreateOrderInput) (*Checkout, error)
		PayWithWallet(ctx context.Context, user *models.User, input CreateOrderInput) (*models.Order, error)
		ConfirmPayment(ctx context.Context, paymentID string, approved bool) error
		UpdateStatus(ctx context.Context, order *models.Order, to models.Status) error
		GetOrderByUUID(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
		GetOrderByDisplayID(ctx context.Context, displayID string) (*models.Order, error)
		GetOrders(ctx context.Context, uid *uuid.UUID) ([]models.Order, error)
		ListOrders(ctx context.Context, opts repository.ListOptions) ([]models.Order, error)
	}

	OrderServiceImpl struct {
		orderRepo        repository.OrderRepository
		serviceRepo      repository.ServiceRepository
		couponRepo       repository.CouponRepository
		dripFeedRepo     repository.DripFeedRepository
		settingsRepo     repository.SettingsRepository
		walletService    WalletService
		affiliateService AffiliateService
		paymentClient    PaymentClient
		fulfilment       FulfilmentClient
		publisher        events.Publisher
		orderMetrics     *metrics.OrderMetrics
		orderChan        chan models.Order
	}
)

func NewOrderService(orderRepo repository.OrderRepository,
	serviceRepo repository.ServiceRepository,
	couponRepo repository.CouponRepository,
	dripFeedRepo repository.DripFeedRepository,
	settingsRepo repository.SettingsRepository,
	walletService WalletService,
	affiliateService AffiliateService,
	paymentClient PaymentClient,
	fulfilment FulfilmentClient,
	publisher events.Publisher,
	orderMetrics *metrics.OrderMetrics,
	orderChan chan models.Order) *OrderServiceImpl {
	return &OrderServiceImpl{
		orderRepo:        orderRepo,
		serviceRepo:      serviceRepo,
		couponRepo:       couponRepo,
		dripFeedRepo:     dripFeedRepo,
		settingsRepo:     settingsRepo,
		walletService:    walletService,
		affiliateService: affiliateService,
		paymentClient:    paymentClient,
		fulfilment:       fulfilment,
		publisher:        publisher,
		orderMetrics:     orderMetrics,
		orderChan:        orderChan,
	}
}

// buildOrder prices the service for the customer: coupon first, then the
// VIP tier discount on what remains.
func (os *OrderServiceImpl) buildOrder(ctx context.Context, user *models.User, input CreateOrderInput) (*models.Order, *models.Service, *models.Coupon, error) {
	svc, err := os.serviceRepo.GetByUUID(ctx, input.ServiceUUID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !svc.IsActive {
		msg := "service is not available"
		return nil, nil, nil, appErrors.NewWithCode(errors.New(msg), msg, http.StatusUnprocessableEntity)
	}
	if input.Express && !svc.ExpressAvailable {
		msg := "express delivery is not available for this service"
		return nil, nil, nil, appErrors.NewWithCode(errors.New(msg), msg, http.StatusUnprocessableEntity)
	}
	if input.DripFeed && !svc.DripFeedAvailable {
		msg := "drip feed is not available for this service"
		return nil, nil, nil, appErrors.NewWithCode(errors.New(msg), msg, http.StatusUnprocessableEntity)
	}
	if input.TargetURL == "" {
		msg := "target url is required"
		return nil, nil, nil, appErrors.NewWithCode(errors.New(msg), msg, http.StatusBadRequest)
	}

	quantity := svc.Quantity
	price := svc.Price
	discount := 0.0

	var coupon *models.Coupon
	if input.CouponCode != "" {
		coupon, err = os.couponRepo.GetByCode(ctx, input.CouponCode)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := EvaluateCoupon(coupon, svc.UUID.String(), price, time.Now()); err != nil {
			return nil, nil, nil, err
		}
		couponDiscount, bonusQty := ApplyCoupon(coupon, price, quantity)
		discount += couponDiscount
		quantity += bonusQty
	}

	settings, err := os.settingsRepo.Get(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load settings: %w", err)
	}
	wallet, err := os.walletService.GetWallet(ctx, &user.UUID)
	if err != nil {
		return nil, nil, nil, err
	}
	vip := ComputeVipProgress(wallet.TotalSpent, settings.VipTiers)
	if vip.Discount > 0 {
		discount += (price - discount) * vip.Discount / 100
	}

	total := price - discount
	if total < 0 {
		total = 0
	}

	now := time.Now()
	order := &models.Order{
		UUID:             uuid.New(),
		DisplayID:        NewDisplayID(),
		UserUUID:         user.UUID,
		TargetURL:        input.TargetURL,
		Quantity:         quantity,
		TotalPrice:       total,
		Status:           models.PendingPayment,
		PaymentMethod:    models.PaymentMethodPix,
		CustomerEmail:    user.Email,
		CustomerWhatsapp: user.Whatsapp,
		DiscountAmount:   discount,
		IsExpress:        input.Express,
		IsDripFeed:       input.DripFeed,
		DripDays:         input.DripDays,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	svcUUID := svc.UUID
	order.ServiceUUID = &svcUUID
	if coupon != nil {
		code := coupon.Code
		order.CouponCode = &code
	}
	if input.AffiliateCode != "" {
		ref := input.AffiliateCode
		order.AffiliateCode = &ref
	}
	return order, svc, coupon, nil
}

// CreateOrder is the PIX checkout: the order waits in pending_payment until
// the payment webhook confirms the charge.
func (os *OrderServiceImpl) CreateOrder(ctx context.Context, user *models.User, input CreateOrderInput) (*Checkout, error) {
	order, svc, coupon, err := os.buildOrder(ctx, user, input)
	if err != nil {
		return nil, err
	}

	tx, err := os.orderRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := os.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if coupon != nil {
		if err := os.couponRepo.IncrementUsage(ctx, tx, coupon.Code); err != nil {
			return nil, err
		}
	}

	payment, err := os.paymentClient.CreatePayment(ctx, clients.PaymentRequest{
		OrderID:     order.UUID.String(),
		Amount:      order.TotalPrice,
		Description: fmt.Sprintf("%s (%s)", svc.Name, order.DisplayID),
		PayerEmail:  user.Email,
	})
	if err != nil {
		return nil, appErrors.NewWithCode(err, "payment provider unavailable", http.StatusBadGateway)
	}
	order.PaymentID = &payment.PaymentID
	order.UpdatedAt = time.Now()
	if err := os.orderRepo.UpdateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	os.orderMetrics.OrdersCreatedTotal.WithLabelValues(svc.Platform, order.PaymentMethod).Inc()
	os.publishEvent(ctx, events.EventOrderCreated, order)
	os.orderChan <- *order // track until payment confirms or expires

	qr, err := payments.QRCodePNG(payment.PixCode)
	if err != nil {
		return nil, appErrors.New(err, "render pix qr code")
	}
	return &Checkout{
		Order: order,
		Charge: &payments.PixCharge{
			PaymentID:    payment.PaymentID,
			PixCode:      payment.PixCode,
			QRCodeBase64: qr,
		},
	}, nil
}

// PayWithWallet debits the wallet and creates the order atomically. The
// sufficiency check happens inside the transaction, before anything is
// written; a short balance leaves no trace.
func (os *OrderServiceImpl) PayWithWallet(ctx context.Context, user *models.User, input CreateOrderInput) (*models.Order, error) {
	order, svc, coupon, err := os.buildOrder(ctx, user, input)
	if err != nil {
		return nil, err
	}
	order.PaymentMethod = models.PaymentMethodWallet
	order.WalletPaid = true
	order.Status = models.Processing
	if order.IsDripFeed {
		order.Status = models.DripFeedActive
	}

	tx, err := os.orderRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	wallet, err := os.walletService.GetWalletTx(ctx, tx, &user.UUID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < order.TotalPrice {
		msg := "insufficient wallet balance"
		return nil, appErrors.NewWithCode(errors.New(msg), msg, http.StatusPaymentRequired)
	}

	debited, err := os.walletService.Debit(ctx, tx, &user.UUID, order.TotalPrice)
	if err != nil {
		return nil, err
	}
	if err := os.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	orderUUID := order.UUID
	err = os.walletService.AppendTransaction(ctx, tx, &models.WalletTransaction{
		UserUUID:      user.UUID,
		OrderUUID:     &orderUUID,
		Type:          models.TransactionPurchase,
		Amount:        order.TotalPrice,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  debited.Balance,
		Description:   fmt.Sprintf("%s (%s)", svc.Name, order.DisplayID),
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if coupon != nil {
		if err := os.couponRepo.IncrementUsage(ctx, tx, coupon.Code); err != nil {
			return nil, err
		}
	}
	if order.IsDripFeed {
		if err := os.createDripFeed(ctx, tx, order); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit wallet order: %w", err)
	}

	os.orderMetrics.OrdersCreatedTotal.WithLabelValues(svc.Platform, order.PaymentMethod).Inc()
	os.orderMetrics.WalletPurchasesTotal.Inc()
	os.publishEvent(ctx, events.EventOrderCreated, order)

	if !order.IsDripFeed {
		os.dispatch(ctx, order, svc)
	}
	os.orderChan <- *order
	return order, nil
}

// createDripFeed spreads the order over the days the customer asked for at
// checkout; orders placed without an explicit choice run for a week.
func (os *OrderServiceImpl) createDripFeed(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	days := order.DripDays
	if days < 1 {
		days = 7
	}
	daily := order.Quantity / days
	if daily < 1 {
		daily = 1
	}
	return os.dripFeedRepo.Create(ctx, tx, &models.DripFeedOrder{
		OrderUUID:     order.UUID,
		TotalQuantity: order.Quantity,
		DailyQuantity: daily,
		NextRunAt:     time.Now(),
		IsActive:      true,
		CreatedAt:     time.Now(),
	})
}

// dispatch hands the order to the fulfilment provider. Failure is not fatal:
// the order stays in its current status and the sync worker keeps watching it.
func (os *OrderServiceImpl) dispatch(ctx context.Context, order *models.Order, svc *models.Service) {
	providerServiceID := ""
	if svc.ProviderServiceID != nil {
		providerServiceID = *svc.ProviderServiceID
	}
	resp, err := os.fulfilment.DispatchOrder(ctx, clients.DispatchRequest{
		OrderID:           order.UUID.String(),
		ProviderServiceID: providerServiceID,
		TargetURL:         order.TargetURL,
		Quantity:          order.Quantity,
		Express:           order.IsExpress,
	})
	if err != nil {
		logger.Log.Error("order dispatch failed",
			zap.String("order_uuid", order.UUID.String()), zap.Error(err))
		return
	}
	order.ProviderOrderID = &resp.ProviderOrderID
	order.UpdatedAt = time.Now()

	tx, err := os.orderRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		logger.Log.Error("begin dispatch update", zap.Error(err))
		return
	}
	defer tx.Rollback()
	if err := os.orderRepo.UpdateOrder(ctx, tx, order); err != nil {
		logger.Log.Error("save provider order id", zap.Error(err))
		return
	}
	if err := tx.Commit(); err != nil {
		logger.Log.Error("commit dispatch update", zap.Error(err))
	}
}

// ConfirmPayment is driven by the payment webhook. Deposits credit the
// wallet; service orders advance to processing and go out for fulfilment.
// Repeated notifications for the same payment are no-ops.
func (os *OrderServiceImpl) ConfirmPayment(ctx context.Context, paymentID string, approved bool) error {
	order, err := os.orderRepo.GetOrderByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	if order.IsDeposit {
		if !approved {
			return os.UpdateStatus(ctx, order, models.Cancelled)
		}
		return os.walletService.ConfirmDeposit(ctx, order)
	}
	if order.Status != models.PendingPayment {
		return nil
	}
	if !approved {
		return os.UpdateStatus(ctx, order, models.Cancelled)
	}

	next := models.Processing
	if order.IsDripFeed {
		next = models.DripFeedActive
	}
	tx, err := os.orderRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	order.Status = next
	order.UpdatedAt = time.Now()
	if err := os.orderRepo.UpdateOrder(ctx, tx, order); err != nil {
		return err
	}
	if order.IsDripFeed {
		if err := os.createDripFeed(ctx, tx, order); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment confirmation: %w", err)
	}

	os.publishEvent(ctx, events.EventStatusChanged, order)
	if !order.IsDripFeed && order.ServiceUUID != nil {
		if svc, err := os.serviceRepo.GetByUUID(ctx, *order.ServiceUUID); err == nil {
			os.dispatch(ctx, order, svc)
		}
	}
	os.orderChan <- *order
	return nil
}

// UpdateStatus applies one lifecycle transition with side effects: completed
// orders earn affiliate commission, refunded orders return the money to the
// wallet.
func (os *OrderServiceImpl) UpdateStatus(ctx context.Context, order *models.Order, to models.Status) error {
	if !CanTransition(order.Status, to) {
		msg := fmt.Sprintf("cannot move order from %s to %s", order.Status, to)
		return appErrors.NewWithCode(errors.New(msg), msg, http.StatusConflict)
	}

	tx, err := os.orderRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	from := order.Status
	order.Status = to
	order.UpdatedAt = time.Now()
	if err := os.orderRepo.UpdateOrder(ctx, tx, order); err != nil {
		return err
	}

	switch to {
	case models.Completed:
		if err := os.affiliateService.RecordCommission(ctx, tx, order); err != nil {
			return err
		}
	case models.Refunded:
		if err := os.refundToWallet(ctx, tx, order); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		order.Status = from
		return fmt.Errorf("commit status update: %w", err)
	}

	switch to {
	case models.Completed:
		os.orderMetrics.OrdersCompletedTotal.Inc()
		os.orderMetrics.OrderCompletionDuration.Observe(time.Since(order.CreatedAt).Seconds())
	case models.Cancelled, models.Refunded:
		os.orderMetrics.OrdersCancelledTotal.Inc()
	}
	os.publishEvent(ctx, events.EventStatusChanged, order)
	return nil
}

func (os *OrderServiceImpl) refundToWallet(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	if order.TotalPrice <= 0 {
		return nil
	}
	wallet, err := os.walletService.Credit(ctx, tx, &order.UserUUID, order.TotalPrice)
	if err != nil {
		return err
	}
	orderUUID := order.UUID
	return os.walletService.AppendTransaction(ctx, tx, &models.WalletTransaction{
		UserUUID:      order.UserUUID,
		OrderUUID:     &orderUUID,
		Type:          models.TransactionRefund,
		Amount:        order.TotalPrice,
		BalanceBefore: wallet.Balance - order.TotalPrice,
		BalanceAfter:  wallet.Balance,
		Description:   fmt.Sprintf("Refund %s", order.DisplayID),
		CreatedAt:     time.Now(),
	})
}

func (os *OrderServiceImpl) publishEvent(ctx context.Context, eventType string, order *models.Order) {
	err := os.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		EventType:     eventType,
		OrderUUID:     order.UUID.String(),
		DisplayID:     order.DisplayID,
		CustomerEmail: order.CustomerEmail,
		Status:        order.Status.String(),
		TotalPrice:    order.TotalPrice,
		OccurredAt:    time.Now(),
	})
	if err != nil {
		logger.Log.Error("publish order event", zap.Error(err))
	}
}

func (os *OrderServiceImpl) GetOrderByUUID(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	return os.orderRepo.GetOrderByUUID(ctx, orderUUID)
}

func (os *OrderServiceImpl) GetOrderByDisplayID(ctx context.Context, displayID string) (*models.Order, error) {
	return os.orderRepo.GetOrderByDisplayID(ctx, displayID)
}

func (os *OrderServiceImpl) GetOrders(ctx context.Context, uid *uuid.UUID) ([]models.Order, error) {
	return os.orderRepo.GetOrdersByUserUID(ctx, uid)
}

func (os *OrderServiceImpl) ListOrders(ctx context.Context, opts repository.ListOptions) ([]models.Order, error) {
	return os.orderRepo.ListOrders(ctx, opts)
}
