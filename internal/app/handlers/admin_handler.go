package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	appContext "github.com/instafly/instafly/internal/app/context"
	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service"
	"github.com/instafly/instafly/internal/app/service/clients"
)

type (
	AdminHandler struct {
		orderService     service.OrderService
		couponService    service.CouponService
		affiliateService service.AffiliateService
		settingsService  service.SettingsService
		serviceRepo      repository.ServiceRepository
		dripFeedRepo     repository.DripFeedRepository
		functionsClient  clients.FunctionsClient
		contextTimeout   time.Duration
	}

	UpsertServiceDto struct {
		Name              string  `json:"name"`
		Platform          string  `json:"platform"`
		Category          string  `json:"category"`
		Description       string  `json:"description"`
		Quantity          int     `json:"quantity"`
		Price             float64 `json:"price"`
		IsActive          bool    `json:"is_active"`
		ExpressAvailable  bool    `json:"express_available"`
		DripFeedAvailable bool    `json:"drip_feed_available"`
		ProviderServiceID *string `json:"provider_service_id"`
	}

	UpsertCouponDto struct {
		Code               string     `json:"code"`
		DiscountType       string     `json:"discount_type"`
		Value              float64    `json:"value"`
		MinOrderValue      float64    `json:"min_order_value"`
		MaxUses            int        `json:"max_uses"`
		ValidFrom          *time.Time `json:"valid_from"`
		ValidUntil         *time.Time `json:"valid_until"`
		IsActive           bool       `json:"is_active"`
		ApplicableServices []string   `json:"applicable_services"`
	}

	AdminCouponDto struct {
		UUID      string `json:"uuid"`
		Code      string `json:"code"`
		State     string `json:"state"`
		UsedCount int    `json:"used_count"`
		MaxUses   int    `json:"max_uses"`
	}

	CreateAffiliateDto struct {
		UserUUID       string  `json:"user_uuid"`
		CommissionRate float64 `json:"commission_rate"`
	}

	UpdateOrderStatusDto struct {
		Status string `json:"status"`
	}
)

func NewAdminHandler(orderService service.OrderService,
	couponService service.CouponService,
	affiliateService service.AffiliateService,
	settingsService service.SettingsService,
	serviceRepo repository.ServiceRepository,
	dripFeedRepo repository.DripFeedRepository,
	functionsClient clients.FunctionsClient,
	contextTimeoutSec int) *AdminHandler {
	return &AdminHandler{
		orderService:     orderService,
		couponService:    couponService,
		affiliateService: affiliateService,
		settingsService:  settingsService,
		serviceRepo:      serviceRepo,
		dripFeedRepo:     dripFeedRepo,
		functionsClient:  functionsClient,
		contextTimeout:   time.Duration(contextTimeoutSec) * time.Second,
	}
}

func (ah *AdminHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return false
	}
	return true
}

func listOptionsFromQuery(r *http.Request) repository.ListOptions {
	opts := repository.ListOptions{SortKey: r.URL.Query().Get("sort")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}
	return opts
}

// ----- orders -----

func (ah *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	orders, err := ah.orderService.ListOrders(ctx, listOptionsFromQuery(r))
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}

	response := make([]OrderDto, 0, len(orders))
	for i := range orders {
		response = append(response, orderToDto(&orders[i]))
	}
	writeJSON(w, http.StatusOK, response)
}

// UpdateOrderStatus lets an operator move an order along its lifecycle.
// Backward moves and moves out of a terminal state are rejected.
func (ah *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	orderUUID, err := uuid.Parse(chi.URLParam(r, "orderUUID"))
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid order uuid", http.StatusBadRequest))
		return
	}
	request := UpdateOrderStatusDto{}
	if !ah.decodeBody(w, r, &request) {
		return
	}

	order, err := ah.orderService.GetOrderByUUID(ctx, orderUUID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := ah.orderService.UpdateStatus(ctx, order, models.Status(request.Status)); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToDto(order))
}

// ----- services -----

func (ah *AdminHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	request := UpsertServiceDto{}
	if !ah.decodeBody(w, r, &request) {
		return
	}

	svc := &models.Service{
		UUID:              uuid.New(),
		Name:              request.Name,
		Platform:          request.Platform,
		Category:          request.Category,
		Description:       request.Description,
		Quantity:          request.Quantity,
		Price:             request.Price,
		IsActive:          request.IsActive,
		ExpressAvailable:  request.ExpressAvailable,
		DripFeedAvailable: request.DripFeedAvailable,
		ProviderServiceID: request.ProviderServiceID,
		CreatedAt:         time.Now(),
	}
	if err := ah.serviceRepo.Create(ctx, svc); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, serviceToDto(svc))
}

func (ah *AdminHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	services, err := ah.serviceRepo.List(ctx, listOptionsFromQuery(r))
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (ah *AdminHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	svcUUID, err := uuid.Parse(chi.URLParam(r, "serviceUUID"))
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid service uuid", http.StatusBadRequest))
		return
	}
	request := UpsertServiceDto{}
	if !ah.decodeBody(w, r, &request) {
		return
	}

	svc, err := ah.serviceRepo.GetByUUID(ctx, svcUUID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	svc.Name = request.Name
	svc.Platform = request.Platform
	svc.Category = request.Category
	svc.Description = request.Description
	svc.Quantity = request.Quantity
	svc.Price = request.Price
	svc.IsActive = request.IsActive
	svc.ExpressAvailable = request.ExpressAvailable
	svc.DripFeedAvailable = request.DripFeedAvailable
	svc.ProviderServiceID = request.ProviderServiceID

	if err := ah.serviceRepo.Update(ctx, svc); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serviceToDto(svc))
}

func (ah *AdminHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	svcUUID, err := uuid.Parse(chi.URLParam(r, "serviceUUID"))
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid service uuid", http.StatusBadRequest))
		return
	}
	if err := ah.serviceRepo.Delete(ctx, svcUUID); err != nil {
		PrepareError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- coupons -----

func (ah *AdminHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	coupons, err := ah.couponService.List(ctx, listOptionsFromQuery(r))
	if err != nil {
		PrepareError(w, err)
		return
	}

	now := time.Now()
	response := make([]AdminCouponDto, 0, len(coupons))
	for i := range coupons {
		response = append(response, AdminCouponDto{
			UUID:      coupons[i].UUID.String(),
			Code:      coupons[i].Code,
			State:     service.CouponState(&coupons[i], now),
			UsedCount: coupons[i].UsedCount,
			MaxUses:   coupons[i].MaxUses,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func (ah *AdminHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	request := UpsertCouponDto{}
	if !ah.decodeBody(w, r, &request) {
		return
	}

	coupon := &models.Coupon{
		UUID:               uuid.New(),
		Code:               request.Code,
		DiscountType:       request.DiscountType,
		Value:              request.Value,
		MinOrderValue:      request.MinOrderValue,
		MaxUses:            request.MaxUses,
		ValidFrom:          request.ValidFrom,
		ValidUntil:         request.ValidUntil,
		IsActive:           request.IsActive,
		ApplicableServices: pq.StringArray(request.ApplicableServices),
		CreatedAt:          time.Now(),
	}
	if err := ah.couponService.Create(ctx, coupon); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, coupon)
}

func (ah *AdminHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	couponUUID, err := uuid.Parse(chi.URLParam(r, "couponUUID"))
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid coupon uuid", http.StatusBadRequest))
		return
	}
	request := UpsertCouponDto{}
	if !ah.decodeBody(w, r, &request) {
		return
	}

	coupon := &models.Coupon{
		UUID:               couponUUID,
		Code:               request.Code,
		DiscountType:       request.DiscountType,
		Value:              request.Value,
		MinOrderValue:      request.MinOrderValue,
		MaxUses:            request.MaxUses,
		ValidFrom:          request.ValidFrom,
		ValidUntil:         request.ValidUntil,
		IsActive:           request.IsActive,
		ApplicableServices: pq.StringArray(request.ApplicableServices),
	}
	if err := ah.couponService.Update(ctx, coupon); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

func (ah *AdminHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	couponUUID, err := uuid.Parse(chi.URLParam(r, "couponUUID"))
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid coupon uuid", http.StatusBadRequest))
		return
	}
	if err := ah.couponService.Delete(ctx, &models.Coupon{UUID: couponUUID}); err != nil {
		PrepareError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- affiliates -----

func (ah *AdminHandler) CreateAffiliate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	request := CreateAffiliateDto{}
	if !ah.decodeBody(w, r, &request) {
		return
	}
	userUID, err := uuid.Parse(request.UserUUID)
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid user uuid", http.StatusBadRequest))
		return
	}

	affiliate, err := ah.affiliateService.Create(ctx, userUID, request.CommissionRate)
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, affiliate)
}

func (ah *AdminHandler) ListAffiliates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	affiliates, err := ah.affiliateService.List(ctx, listOptionsFromQuery(r))
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, affiliates)
}

func (ah *AdminHandler) GetAffiliateEarnings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	affiliateUUID, err := uuid.Parse(chi.URLParam(r, "affiliateUUID"))
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid affiliate uuid", http.StatusBadRequest))
		return
	}
	earnings, err := ah.affiliateService.GetEarnings(ctx, affiliateUUID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, earnings)
}

func (ah *AdminHandler) MarkEarningPaid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	earningID, err := strconv.ParseInt(chi.URLParam(r, "earningID"), 10, 64)
	if err != nil {
		PrepareError(w, appErrors.NewWithCode(err, "invalid earning id", http.StatusBadRequest))
		return
	}
	if err := ah.affiliateService.MarkEarningPaid(ctx, earningID); err != nil {
		PrepareError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ----- settings -----

func (ah *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	settings, err := ah.settingsService.Get(ctx)
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (ah *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	settings := &models.Settings{}
	if !ah.decodeBody(w, r, settings) {
		return
	}
	if err := ah.settingsService.Update(ctx, settings); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// ----- drip feed -----

func (ah *AdminHandler) ListDripFeeds(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	dripFeeds, err := ah.dripFeedRepo.List(ctx)
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dripFeeds)
}

// ----- diagnostics -----

type DiagnosticsDto struct {
	Function  string `json:"function"`
	Reachable bool   `json:"reachable"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// RunDiagnostics checks the hosted sync-order-status function with a dry-run
// payload so an operator can tell a dead integration from bad credentials
// without creating an order.
func (ah *AdminHandler) RunDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ah.contextTimeout)
	defer cancel()

	result := DiagnosticsDto{Function: clients.FnSyncOrderStatus}
	start := time.Now()
	_, err := ah.functionsClient.Invoke(ctx, clients.FnSyncOrderStatus,
		map[string]any{"dry_run": true})
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		writeJSON(w, http.StatusOK, result)
		return
	}
	result.Reachable = true
	writeJSON(w, http.StatusOK, result)
}
