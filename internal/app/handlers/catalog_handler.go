package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	appContext "github.com/instafly/instafly/internal/app/context"
	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service"
)

type (
	CatalogHandler struct {
		serviceRepo    repository.ServiceRepository
		couponService  service.CouponService
		contextTimeout time.Duration
	}

	ServiceDto struct {
		UUID              string  `json:"uuid"`
		Name              string  `json:"name"`
		Platform          string  `json:"platform"`
		Category          string  `json:"category"`
		Description       string  `json:"description"`
		Quantity          int     `json:"quantity"`
		Price             float64 `json:"price"`
		ExpressAvailable  bool    `json:"express_available"`
		DripFeedAvailable bool    `json:"drip_feed_available"`
	}

	ValidateCouponDto struct {
		Code        string  `json:"code"`
		ServiceUUID string  `json:"service_uuid"`
		OrderValue  float64 `json:"order_value"`
	}

	CouponResultDto struct {
		Code         string  `json:"code"`
		DiscountType string  `json:"discount_type"`
		Value        float64 `json:"value"`
	}
)

func NewCatalogHandler(serviceRepo repository.ServiceRepository, couponService service.CouponService, contextTimeoutSec int) *CatalogHandler {
	return &CatalogHandler{
		serviceRepo:    serviceRepo,
		couponService:  couponService,
		contextTimeout: time.Duration(contextTimeoutSec) * time.Second,
	}
}

func serviceToDto(svc *models.Service) ServiceDto {
	return ServiceDto{
		UUID:              svc.UUID.String(),
		Name:              svc.Name,
		Platform:          svc.Platform,
		Category:          svc.Category,
		Description:       svc.Description,
		Quantity:          svc.Quantity,
		Price:             svc.Price,
		ExpressAvailable:  svc.ExpressAvailable,
		DripFeedAvailable: svc.DripFeedAvailable,
	}
}

// GetServices lists the purchasable catalog. The optional platform query
// narrows it to one network; sort accepts a column name with a leading '-'
// for descending order.
func (ch *CatalogHandler) GetServices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ch.contextTimeout)
	defer cancel()

	var (
		services []models.Service
		err      error
	)
	if platform := r.URL.Query().Get("platform"); platform != "" {
		services, err = ch.serviceRepo.ListActiveByPlatform(ctx, platform)
	} else {
		services, err = ch.serviceRepo.List(ctx, repository.ListOptions{
			SortKey: r.URL.Query().Get("sort"),
		})
	}
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}

	response := make([]ServiceDto, 0, len(services))
	for i := range services {
		if !services[i].IsActive {
			continue
		}
		response = append(response, serviceToDto(&services[i]))
	}
	writeJSON(w, http.StatusOK, response)
}

// ValidateCoupon checks a code before checkout so the storefront can show
// the discount up front.
func (ch *CatalogHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), ch.contextTimeout)
	defer cancel()

	request := ValidateCouponDto{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}

	coupon, err := ch.couponService.Validate(ctx, request.Code, request.ServiceUUID, request.OrderValue)
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CouponResultDto{
		Code:         coupon.Code,
		DiscountType: coupon.DiscountType,
		Value:        coupon.Value,
	})
}
