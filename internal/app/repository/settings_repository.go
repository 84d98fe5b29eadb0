package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/instafly/instafly/internal/app/models"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, settings *models.Settings) error
}

type SettingsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepositoryImpl {
	return &SettingsRepositoryImpl{db: db}
}

// Get returns the singleton row, inserting the defaults on first access.
func (sr *SettingsRepositoryImpl) Get(ctx context.Context) (*models.Settings, error) {
	settings := &models.Settings{}
	err := sr.db.GetContext(ctx, settings, `SELECT * FROM settings WHERE id = 1;`)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	defaults := defaultSettings()
	query := `INSERT INTO settings (id, site_name, min_deposit_amount, vip_tiers, bonus_rules, campaigns, updated_at)
			  VALUES (1, $1, $2, $3, $4, $5, $6) returning *;`
	if err := sr.db.GetContext(ctx, settings, query,
		defaults.SiteName, defaults.MinDepositAmount, defaults.VipTiers, defaults.BonusRules,
		defaults.Campaigns, defaults.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert default settings: %w", err)
	}
	return settings, nil
}

// Update is an unconditional full-row write keyed by the singleton id; the
// last admin edit wins.
func (sr *SettingsRepositoryImpl) Update(ctx context.Context, settings *models.Settings) error {
	query := `UPDATE settings SET site_name = $1, logo_url = $2, support_whatsapp = $3,
				mercadopago_public_key = $4, mercadopago_access_token = $5, min_deposit_amount = $6,
				vip_tiers = $7, bonus_rules = $8, campaigns = $9, updated_at = $10
			  WHERE id = 1`
	_, err := sr.db.ExecContext(ctx, query,
		settings.SiteName, settings.LogoURL, settings.SupportWhatsapp,
		settings.MercadoPagoPublicKey, settings.MercadoPagoAccessToken, settings.MinDepositAmount,
		settings.VipTiers, settings.BonusRules, settings.Campaigns, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func defaultSettings() *models.Settings {
	campaigns := models.CampaignConfigs{}
	for _, name := range models.CampaignNames() {
		campaigns[name] = models.CampaignConfig{Enabled: false}
	}
	return &models.Settings{
		SiteName:         "InstaFLY",
		MinDepositAmount: 10,
		VipTiers:         models.VipTierList{},
		BonusRules:       models.BonusRuleList{},
		Campaigns:        campaigns,
		UpdatedAt:        time.Now(),
	}
}
