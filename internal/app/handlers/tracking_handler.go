package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appContext "github.com/instafly/instafly/internal/app/context"
	"github.com/instafly/instafly/internal/app/service"
	"github.com/instafly/instafly/internal/app/service/clients"
)

type (
	TrackingHandler struct {
		orderService   service.OrderService
		profileClient  ProfileClient
		contextTimeout time.Duration
	}

	ProfileClient interface {
		GetInstagramProfile(ctx context.Context, username string) (*clients.InstagramProfile, error)
	}

	// TrackingDto is deliberately thin: the tracking page is public, so it
	// exposes nothing about the customer.
	TrackingDto struct {
		DisplayID  string             `json:"display_id"`
		Quantity   int                `json:"quantity"`
		IsDripFeed bool               `json:"is_drip_feed"`
		CreatedAt  string             `json:"created_at"`
		Status     service.StatusInfo `json:"status"`
	}
)

func NewTrackingHandler(orderService service.OrderService, profileClient ProfileClient, contextTimeoutSec int) *TrackingHandler {
	return &TrackingHandler{
		orderService:   orderService,
		profileClient:  profileClient,
		contextTimeout: time.Duration(contextTimeoutSec) * time.Second,
	}
}

func (th *TrackingHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), th.contextTimeout)
	defer cancel()

	displayID := chi.URLParam(r, "displayID")
	order, err := th.orderService.GetOrderByDisplayID(ctx, displayID)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TrackingDto{
		DisplayID:  order.DisplayID,
		Quantity:   order.Quantity,
		IsDripFeed: order.IsDripFeed,
		CreatedAt:  order.CreatedAt.Format(time.RFC3339),
		Status:     service.StatusInfoFor(order.Status),
	})
}

// GetInstagramProfile previews the profile a customer is about to order
// for, so they can confirm the handle before paying.
func (th *TrackingHandler) GetInstagramProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), th.contextTimeout)
	defer cancel()

	username := chi.URLParam(r, "username")
	if username == "" {
		WriteJSONErrorResponse(w, "username is required", http.StatusBadRequest)
		return
	}

	profile, err := th.profileClient.GetInstagramProfile(ctx, username)
	if err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
