package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appContext "github.com/instafly/instafly/internal/app/context"
	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/service"
)

type (
	OrdersHandler struct {
		orderService   service.OrderService
		userService    service.UserService
		contextTimeout time.Duration
	}

	CreateOrderDto struct {
		ServiceUUID   string `json:"service_uuid"`
		TargetURL     string `json:"target_url"`
		CouponCode    string `json:"coupon_code"`
		AffiliateCode string `json:"affiliate_code"`
		PaymentMethod string `json:"payment_method"`
		Express       bool   `json:"express"`
		DripFeed      bool   `json:"drip_feed"`
		DripDays      int    `json:"drip_days"`
	}

	OrderDto struct {
		UUID           string  `json:"uuid"`
		DisplayID      string  `json:"display_id"`
		ServiceUUID    *string `json:"service_uuid,omitempty"`
		TargetURL      string  `json:"target_url"`
		Quantity       int     `json:"quantity"`
		TotalPrice     float64 `json:"total_price"`
		Status         string  `json:"status"`
		PaymentMethod  string  `json:"payment_method"`
		CouponCode     *string `json:"coupon_code,omitempty"`
		DiscountAmount float64 `json:"discount_amount"`
		IsExpress      bool    `json:"is_express"`
		IsDripFeed     bool    `json:"is_drip_feed"`
		IsDeposit      bool    `json:"is_deposit"`
		CreatedAt      string  `json:"created_at"`
	}

	CheckoutDto struct {
		Order        OrderDto `json:"order"`
		PaymentID    string   `json:"payment_id,omitempty"`
		PixCode      string   `json:"pix_code,omitempty"`
		QRCodeBase64 string   `json:"qr_code_base64,omitempty"`
	}
)

func NewOrdersHandler(orderService service.OrderService, userService service.UserService, contextTimeoutSec int) *OrdersHandler {
	return &OrdersHandler{
		orderService:   orderService,
		userService:    userService,
		contextTimeout: time.Duration(contextTimeoutSec) * time.Second,
	}
}

func orderToDto(order *models.Order) OrderDto {
	dto := OrderDto{
		UUID:           order.UUID.String(),
		DisplayID:      order.DisplayID,
		TargetURL:      order.TargetURL,
		Quantity:       order.Quantity,
		TotalPrice:     order.TotalPrice,
		Status:         order.Status.String(),
		PaymentMethod:  order.PaymentMethod,
		CouponCode:     order.CouponCode,
		DiscountAmount: order.DiscountAmount,
		IsExpress:      order.IsExpress,
		IsDripFeed:     order.IsDripFeed,
		IsDeposit:      order.IsDeposit,
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	}
	if order.ServiceUUID != nil {
		s := order.ServiceUUID.String()
		dto.ServiceUUID = &s
	}
	return dto
}

func (oh *OrdersHandler) currentUser(ctx context.Context, r *http.Request) (*models.User, error) {
	userUID := appContext.UserUID(r.Context())
	if userUID == nil {
		msg := "user is not authenticated"
		return nil, appErrors.NewWithCode(errors.New(msg), msg, http.StatusUnauthorized)
	}
	return oh.userService.GetByUUID(ctx, userUID)
}

// CreateOrder places a new order. PIX orders come back with a charge to
// pay; wallet orders are debited and dispatched right away.
func (oh *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), oh.contextTimeout)
	defer cancel()

	request := CreateOrderDto{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}
	serviceUUID, err := uuid.Parse(request.ServiceUUID)
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid service uuid", http.StatusBadRequest))
		return
	}

	user, err := oh.currentUser(ctx, r)
	if err != nil {
		PrepareError(w, err)
		return
	}

	input := service.CreateOrderInput{
		ServiceUUID:   serviceUUID,
		TargetURL:     request.TargetURL,
		CouponCode:    request.CouponCode,
		AffiliateCode: request.AffiliateCode,
		Express:       request.Express,
		DripFeed:      request.DripFeed,
		DripDays:      request.DripDays,
	}

	if request.PaymentMethod == models.PaymentMethodWallet {
		order, err := oh.orderService.PayWithWallet(ctx, user, input)
		if err != nil {
			PrepareError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, CheckoutDto{Order: orderToDto(order)})
		return
	}

	checkout, err := oh.orderService.CreateOrder(ctx, user, input)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}

	response := CheckoutDto{Order: orderToDto(checkout.Order)}
	if checkout.Charge != nil {
		response.PaymentID = checkout.Charge.PaymentID
		response.PixCode = checkout.Charge.PixCode
		response.QRCodeBase64 = checkout.Charge.QRCodeBase64
	}
	writeJSON(w, http.StatusCreated, response)
}

func (oh *OrdersHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), oh.contextTimeout)
	defer cancel()

	userUID := appContext.UserUID(r.Context())
	orders, err := oh.orderService.GetOrders(ctx, userUID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	response := make([]OrderDto, 0, len(orders))
	for i := range orders {
		response = append(response, orderToDto(&orders[i]))
	}
	writeJSON(w, http.StatusOK, response)
}

func (oh *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), oh.contextTimeout)
	defer cancel()

	orderUUID, err := uuid.Parse(chi.URLParam(r, "orderUUID"))
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid order uuid", http.StatusBadRequest))
		return
	}

	order, err := oh.orderService.GetOrderByUUID(ctx, orderUUID)
	if err != nil {
		PrepareError(w, err)
		return
	}

	userUID := appContext.UserUID(r.Context())
	if userUID == nil || (order.UserUUID != *userUID && !appContext.IsAdmin(r.Context())) {
		msg := "order belongs to another user"
		PrepareError(w, appErrors.NewWithCode(errors.New(msg), msg, http.StatusForbidden))
		return
	}
	writeJSON(w, http.StatusOK, orderToDto(order))
}
