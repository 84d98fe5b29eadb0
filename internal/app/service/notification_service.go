package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/service/clients"
)

type (
	MessagingClient interface {
		SendWhatsApp(ctx context.Context, msg clients.WhatsAppMessage) error
	}

	// NotificationService owns the campaign configuration and fires test
	// sends. Deciding which real customers are eligible is the job of an
	// external scheduler consuming the order event stream.
	NotificationService interface {
		GetCampaigns(ctx context.Context) (models.CampaignConfigs, error)
		UpdateCampaign(ctx context.Context, name string, config models.CampaignConfig) error
		TestSend(ctx context.Context, name string, phone string) error
	}

	NotificationServiceImpl struct {
		settingsRepo repository.SettingsRepository
		messaging    MessagingClient
	}
)

func NewNotificationService(settingsRepo repository.SettingsRepository, messaging MessagingClient) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		settingsRepo: settingsRepo,
		messaging:    messaging,
	}
}

func (ns *NotificationServiceImpl) GetCampaigns(ctx context.Context) (models.CampaignConfigs, error) {
	settings, err := ns.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	campaigns := settings.Campaigns
	if campaigns == nil {
		campaigns = models.CampaignConfigs{}
	}
	// Every known campaign shows up, even before its first save.
	for _, name := range models.CampaignNames() {
		if _, ok := campaigns[name]; !ok {
			campaigns[name] = models.CampaignConfig{Enabled: false}
		}
	}
	return campaigns, nil
}

func knownCampaign(name string) bool {
	for _, n := range models.CampaignNames() {
		if n == name {
			return true
		}
	}
	return false
}

func (ns *NotificationServiceImpl) UpdateCampaign(ctx context.Context, name string, config models.CampaignConfig) error {
	if !knownCampaign(name) {
		msg := fmt.Sprintf("unknown campaign %q", name)
		return appErrors.NewWithCode(errors.New(msg), msg, http.StatusBadRequest)
	}
	settings, err := ns.settingsRepo.Get(ctx)
	if err != nil {
		return err
	}
	if settings.Campaigns == nil {
		settings.Campaigns = models.CampaignConfigs{}
	}
	settings.Campaigns[name] = config
	return ns.settingsRepo.Update(ctx, settings)
}

// TestSend fires one synthetic campaign message at the given number.
// Disabled campaigns refuse the send, mirroring what the scheduler would do.
func (ns *NotificationServiceImpl) TestSend(ctx context.Context, name string, phone string) error {
	if phone == "" {
		msg := "phone number is required"
		return appErrors.NewWithCode(errors.New(msg), msg, http.StatusBadRequest)
	}
	campaigns, err := ns.GetCampaigns(ctx)
	if err != nil {
		return err
	}
	config, ok := campaigns[name]
	if !ok {
		msg := fmt.Sprintf("unknown campaign %q", name)
		return appErrors.NewWithCode(errors.New(msg), msg, http.StatusBadRequest)
	}
	if !config.Enabled {
		msg := fmt.Sprintf("campaign %q is disabled", name)
		return appErrors.NewWithCode(errors.New(msg), msg, http.StatusUnprocessableEntity)
	}

	err = ns.messaging.SendWhatsApp(ctx, clients.WhatsAppMessage{
		To:      phone,
		Message: buildTestMessage(name, config),
	})
	if err != nil {
		return appErrors.NewWithCode(err, "whatsapp send failed", http.StatusBadGateway)
	}
	return nil
}

var defaultMessages = map[string]string{
	models.CampaignAbandonedCart: "Você esqueceu algo no carrinho! Finalize seu pedido agora.",
	models.CampaignReactivation:  "Sentimos sua falta! Que tal turbinar seu perfil hoje?",
	models.CampaignVipPromo:      "Oferta exclusiva para clientes VIP: aproveite seu desconto.",
	models.CampaignUpsell:        "Seu pedido foi entregue! Que tal um pacote maior agora?",
	models.CampaignWinback:       "Volte para a InstaFLY e ganhe um bônus especial.",
	models.CampaignBirthday:      "Feliz aniversário! Um presente espera por você.",
}

func buildTestMessage(name string, config models.CampaignConfig) string {
	body := config.MessageTemplate
	if body == "" {
		body = defaultMessages[name]
	}
	var b strings.Builder
	b.WriteString("[TESTE] ")
	b.WriteString(body)
	if config.CouponCode != "" {
		b.WriteString(" Use o cupom ")
		b.WriteString(config.CouponCode)
		b.WriteString(".")
	}
	return b.String()
}
