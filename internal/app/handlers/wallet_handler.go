package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appContext "github.com/instafly/instafly/internal/app/context"
	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/service"
)

type (
	WalletHandler struct {
		walletService   service.WalletService
		userService     service.UserService
		settingsService service.SettingsService
		contextTimeout  time.Duration
	}

	WalletDto struct {
		Balance    float64 `json:"balance"`
		TotalSpent float64 `json:"total_spent"`
	}

	WalletTransactionDto struct {
		Type          string  `json:"type"`
		Amount        float64 `json:"amount"`
		BalanceBefore float64 `json:"balance_before"`
		BalanceAfter  float64 `json:"balance_after"`
		Description   string  `json:"description"`
		CreatedAt     string  `json:"created_at"`
	}

	DepositDto struct {
		Amount float64 `json:"amount"`
	}

	DepositResponseDto struct {
		PaymentID    string  `json:"payment_id"`
		PixCode      string  `json:"pix_code"`
		QRCodeBase64 string  `json:"qr_code_base64"`
		Bonus        float64 `json:"bonus,omitempty"`
	}
)

func NewWalletHandler(walletService service.WalletService,
	userService service.UserService,
	settingsService service.SettingsService,
	contextTimeoutSec int) *WalletHandler {
	return &WalletHandler{
		walletService:   walletService,
		userService:     userService,
		settingsService: settingsService,
		contextTimeout:  time.Duration(contextTimeoutSec) * time.Second,
	}
}

func (wh *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), wh.contextTimeout)
	defer cancel()

	userUID := appContext.UserUID(r.Context())
	wallet, err := wh.walletService.GetWallet(ctx, userUID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletDto{Balance: wallet.Balance, TotalSpent: wallet.TotalSpent})
}

func (wh *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), wh.contextTimeout)
	defer cancel()

	userUID := appContext.UserUID(r.Context())
	transactions, err := wh.walletService.GetTransactions(ctx, userUID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	response := make([]WalletTransactionDto, 0, len(transactions))
	for _, wtx := range transactions {
		response = append(response, WalletTransactionDto{
			Type:          wtx.Type,
			Amount:        wtx.Amount,
			BalanceBefore: wtx.BalanceBefore,
			BalanceAfter:  wtx.BalanceAfter,
			Description:   wtx.Description,
			CreatedAt:     wtx.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// Deposit creates a pending deposit order and returns the PIX charge. The
// wallet is only credited once the payment webhook confirms it.
func (wh *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), wh.contextTimeout)
	defer cancel()

	request := DepositDto{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}

	userUID := appContext.UserUID(r.Context())
	if userUID == nil {
		msg := "user is not authenticated"
		PrepareError(w, appErrors.NewWithCode(errors.New(msg), msg, http.StatusUnauthorized))
		return
	}
	user, err := wh.userService.GetByUUID(ctx, userUID)
	if err != nil {
		PrepareError(w, err)
		return
	}

	charge, err := wh.walletService.CreateDeposit(ctx, user, request.Amount)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}

	settings, err := wh.settingsService.Get(ctx)
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DepositResponseDto{
		PaymentID:    charge.PaymentID,
		PixCode:      charge.PixCode,
		QRCodeBase64: charge.QRCodeBase64,
		Bonus:        service.DepositBonus(request.Amount, settings.BonusRules),
	})
}

// GetVipProgress reports the customer's tier standing derived from their
// lifetime spend.
func (wh *WalletHandler) GetVipProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), wh.contextTimeout)
	defer cancel()

	userUID := appContext.UserUID(r.Context())
	wallet, err := wh.walletService.GetWallet(ctx, userUID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	settings, err := wh.settingsService.Get(ctx)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.ComputeVipProgress(wallet.TotalSpent, settings.VipTiers))
}
