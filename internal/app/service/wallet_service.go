package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/metrics"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/payments"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service/clients"
)

type (
	WalletService interface {
		CreateWallet(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID) error
		GetWallet(ctx context.Context, userUID *uuid.UUID) (*models.Wallet, error)
		GetWalletTx(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID) (*models.Wallet, error)
		GetTransactions(ctx context.Context, userUID *uuid.UUID) ([]models.WalletTransaction, error)
		Credit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error)
		Debit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error)
		AppendTransaction(ctx context.Context, tx *sqlx.Tx, wtx *models.WalletTransaction) error
		CreateDeposit(ctx context.Context, user *models.User, amount float64) (*payments.PixCharge, error)
		ConfirmDeposit(ctx context.Context, order *models.Order) error
	}

	PaymentClient interface {
		CreatePayment(ctx context.Context, req clients.PaymentRequest) (*clients.PaymentResponse, error)
	}

	WalletServiceImpl struct {
		walletRepo    repository.WalletRepository
		orderRepo     repository.OrderRepository
		settingsRepo  repository.SettingsRepository
		paymentClient PaymentClient
		orderMetrics  *metrics.OrderMetrics
	}
)

func NewWalletService(walletRepo repository.WalletRepository,
	orderRepo repository.OrderRepository,
	settingsRepo repository.SettingsRepository,
	paymentClient PaymentClient,
	orderMetrics *metrics.OrderMetrics) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:    walletRepo,
		orderRepo:     orderRepo,
		settingsRepo:  settingsRepo,
		paymentClient: paymentClient,
		orderMetrics:  orderMetrics,
	}
}

func (ws *WalletServiceImpl) CreateWallet(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID) error {
	now := time.Now()
	newWallet := models.Wallet{
		UserUUID:  *userUID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := ws.walletRepo.CreateWallet(ctx, tx, &newWallet)
	if err != nil {
		return appErrors.New(err, "create wallet")
	}
	return nil
}

func (ws *WalletServiceImpl) GetWallet(ctx context.Context, userUID *uuid.UUID) (*models.Wallet, error) {
	wallet, err := ws.walletRepo.GetWallet(ctx, userUID)
	if err != nil {
		return nil, appErrors.New(err, "get wallet")
	}
	return wallet, nil
}

func (ws *WalletServiceImpl) GetWalletTx(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID) (*models.Wallet, error) {
	wallet, err := ws.walletRepo.GetWalletTx(ctx, tx, userUID)
	if err != nil {
		return nil, appErrors.New(err, "get wallet")
	}
	return wallet, nil
}

func (ws *WalletServiceImpl) GetTransactions(ctx context.Context, userUID *uuid.UUID) ([]models.WalletTransaction, error) {
	return ws.walletRepo.GetTransactions(ctx, userUID)
}

func (ws *WalletServiceImpl) Credit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error) {
	return ws.walletRepo.Credit(ctx, tx, userUID, amount)
}

func (ws *WalletServiceImpl) Debit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error) {
	return ws.walletRepo.Debit(ctx, tx, userUID, amount)
}

func (ws *WalletServiceImpl) AppendTransaction(ctx context.Context, tx *sqlx.Tx, wtx *models.WalletTransaction) error {
	return ws.walletRepo.AppendTransaction(ctx, tx, wtx)
}

// CreateDeposit opens a deposit order and requests a PIX charge for it. The
// balance is only credited when the payment webhook confirms the charge.
func (ws *WalletServiceImpl) CreateDeposit(ctx context.Context, user *models.User, amount float64) (*payments.PixCharge, error) {
	settings, err := ws.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if amount < settings.MinDepositAmount {
		msg := fmt.Sprintf("minimum deposit is %.2f", settings.MinDepositAmount)
		return nil, appErrors.NewWithCode(errors.New(msg), msg, http.StatusBadRequest)
	}

	now := time.Now()
	order := &models.Order{
		UUID:          uuid.New(),
		DisplayID:     NewDisplayID(),
		UserUUID:      user.UUID,
		TotalPrice:    amount,
		Status:        models.PendingPayment,
		PaymentMethod: models.PaymentMethodPix,
		CustomerEmail: user.Email,
		IsDeposit:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := ws.orderRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := ws.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	payment, err := ws.paymentClient.CreatePayment(ctx, clients.PaymentRequest{
		OrderID:     order.UUID.String(),
		Amount:      amount,
		Description: "Wallet deposit " + order.DisplayID,
		PayerEmail:  user.Email,
	})
	if err != nil {
		return nil, appErrors.NewWithCode(err, "payment provider unavailable", http.StatusBadGateway)
	}

	order.PaymentID = &payment.PaymentID
	order.UpdatedAt = time.Now()
	if err := ws.orderRepo.UpdateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deposit order: %w", err)
	}

	qr, err := payments.QRCodePNG(payment.PixCode)
	if err != nil {
		return nil, appErrors.New(err, "render pix qr code")
	}
	return &payments.PixCharge{
		PaymentID:    payment.PaymentID,
		PixCode:      payment.PixCode,
		QRCodeBase64: qr,
	}, nil
}

// ConfirmDeposit credits the wallet for an approved deposit payment, bonus
// included, and closes the deposit order. Idempotent: a deposit order that
// already left pending_payment is left untouched.
func (ws *WalletServiceImpl) ConfirmDeposit(ctx context.Context, order *models.Order) error {
	if !order.IsDeposit {
		return errors.New("order is not a deposit")
	}
	if order.Status != models.PendingPayment {
		return nil
	}

	settings, err := ws.settingsRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	bonus := DepositBonus(order.TotalPrice, settings.BonusRules)
	total := order.TotalPrice + bonus

	tx, err := ws.walletRepo.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	wallet, err := ws.walletRepo.Credit(ctx, tx, &order.UserUUID, total)
	if err != nil {
		return err
	}

	description := fmt.Sprintf("Deposit %s", order.DisplayID)
	if bonus > 0 {
		description = fmt.Sprintf("Deposit %s (bonus %.2f)", order.DisplayID, bonus)
	}
	orderUUID := order.UUID
	err = ws.walletRepo.AppendTransaction(ctx, tx, &models.WalletTransaction{
		UserUUID:      order.UserUUID,
		OrderUUID:     &orderUUID,
		Type:          models.TransactionDeposit,
		Amount:        total,
		BalanceBefore: wallet.Balance - total,
		BalanceAfter:  wallet.Balance,
		Description:   description,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return err
	}

	order.Status = models.Completed
	order.UpdatedAt = time.Now()
	if err := ws.orderRepo.UpdateOrder(ctx, tx, order); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deposit: %w", err)
	}

	ws.orderMetrics.WalletDepositsTotal.Inc()
	ws.orderMetrics.WalletDepositAmountTotal.Add(total)
	return nil
}
