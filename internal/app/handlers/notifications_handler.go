package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appContext "github.com/instafly/instafly/internal/app/context"
	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/service"
)

type (
	NotificationsHandler struct {
		notificationService service.NotificationService
		contextTimeout      time.Duration
	}

	TestSendDto struct {
		Phone string `json:"phone"`
	}
)

func NewNotificationsHandler(notificationService service.NotificationService, contextTimeoutSec int) *NotificationsHandler {
	return &NotificationsHandler{
		notificationService: notificationService,
		contextTimeout:      time.Duration(contextTimeoutSec) * time.Second,
	}
}

func (nh *NotificationsHandler) GetCampaigns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), nh.contextTimeout)
	defer cancel()

	campaigns, err := nh.notificationService.GetCampaigns(ctx)
	if err != nil {
		PrepareError(w, err)
		return
	}
	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (nh *NotificationsHandler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), nh.contextTimeout)
	defer cancel()

	config := models.CampaignConfig{}
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}

	name := chi.URLParam(r, "campaign")
	if err := nh.notificationService.UpdateCampaign(ctx, name, config); err != nil {
		PrepareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, config)
}

// TestCampaign fires a single campaign message at the given phone so an
// operator can proof the template before enabling it.
func (nh *NotificationsHandler) TestCampaign(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), nh.contextTimeout)
	defer cancel()

	request := TestSendDto{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}

	name := chi.URLParam(r, "campaign")
	if err := nh.notificationService.TestSend(ctx, name, request.Phone); err != nil {
		PrepareError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
