package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/service"
)

type (
	WebhookHandler struct {
		orderService   service.OrderService
		contextTimeout time.Duration
	}

	// PaymentWebhookDto is the MercadoPago notification shape: the payment
	// id rides in data.id, the outcome in status.
	PaymentWebhookDto struct {
		Action string `json:"action"`
		Status string `json:"status"`
		Data   struct {
			ID string `json:"id"`
		} `json:"data"`
	}
)

func NewWebhookHandler(orderService service.OrderService, contextTimeoutSec int) *WebhookHandler {
	return &WebhookHandler{
		orderService:   orderService,
		contextTimeout: time.Duration(contextTimeoutSec) * time.Second,
	}
}

// HandlePaymentWebhook confirms or cancels the order tied to a payment.
// Replayed notifications are acknowledged without effect.
func (wh *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), wh.contextTimeout)
	defer cancel()

	request := PaymentWebhookDto{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}
	if request.Data.ID == "" {
		WriteJSONErrorResponse(w, "payment id is required", http.StatusBadRequest)
		return
	}

	approved := request.Status == "approved"
	if err := wh.orderService.ConfirmPayment(ctx, request.Data.ID, approved); err != nil {
		// The provider retries on non-2xx; only payment ids we have never
		// seen warrant a 404 back.
		logger.Log.Warn("payment webhook failed",
			zap.String("paymentID", request.Data.ID), zap.Error(err))
		PrepareError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
