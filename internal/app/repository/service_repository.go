package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
)

var serviceSortKeys = map[string]string{
	"created_at":   "created_at",
	"created_date": "created_at",
	"price":        "price",
	"name":         "name",
	"platform":     "platform",
}

type ServiceRepository interface {
	Create(ctx context.Context, svc *models.Service) error
	GetByUUID(ctx context.Context, svcUUID uuid.UUID) (*models.Service, error)
	List(ctx context.Context, opts ListOptions) ([]models.Service, error)
	ListActiveByPlatform(ctx context.Context, platform string) ([]models.Service, error)
	Update(ctx context.Context, svc *models.Service) error
	Delete(ctx context.Context, svcUUID uuid.UUID) error
}

type ServiceRepositoryImpl struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) *ServiceRepositoryImpl {
	return &ServiceRepositoryImpl{db: db}
}

func (sr *ServiceRepositoryImpl) Create(ctx context.Context, svc *models.Service) error {
	query := `INSERT INTO services (uuid, name, platform, category, description, quantity, price,
				is_active, express_available, drip_feed_available, provider_service_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`
	_, err := sr.db.ExecContext(ctx, query,
		svc.UUID, svc.Name, svc.Platform, svc.Category, svc.Description, svc.Quantity, svc.Price,
		svc.IsActive, svc.ExpressAvailable, svc.DripFeedAvailable, svc.ProviderServiceID, svc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (sr *ServiceRepositoryImpl) GetByUUID(ctx context.Context, svcUUID uuid.UUID) (*models.Service, error) {
	svc := &models.Service{}
	err := sr.db.GetContext(ctx, svc, `SELECT * FROM services WHERE uuid = $1;`, svcUUID)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "Service not found", http.StatusNotFound)
	}
	return svc, nil
}

func (sr *ServiceRepositoryImpl) List(ctx context.Context, opts ListOptions) ([]models.Service, error) {
	clause, err := orderClause(opts, serviceSortKeys, "created_at DESC")
	if err != nil {
		return nil, appErrors.NewWithCode(err, "invalid sort key", http.StatusBadRequest)
	}
	services := make([]models.Service, 0)
	if err := sr.db.SelectContext(ctx, &services, `SELECT * FROM services ORDER BY `+clause); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

func (sr *ServiceRepositoryImpl) ListActiveByPlatform(ctx context.Context, platform string) ([]models.Service, error) {
	services := make([]models.Service, 0)
	err := sr.db.SelectContext(ctx, &services,
		`SELECT * FROM services WHERE is_active = TRUE AND platform = $1 ORDER BY price ASC;`, platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return services, nil
		}
		return nil, fmt.Errorf("list platform services: %w", err)
	}
	return services, nil
}

func (sr *ServiceRepositoryImpl) Update(ctx context.Context, svc *models.Service) error {
	query := `UPDATE services SET name = $1, platform = $2, category = $3, description = $4, quantity = $5,
				price = $6, is_active = $7, express_available = $8, drip_feed_available = $9, provider_service_id = $10
			  WHERE uuid = $11`
	_, err := sr.db.ExecContext(ctx, query,
		svc.Name, svc.Platform, svc.Category, svc.Description, svc.Quantity, svc.Price,
		svc.IsActive, svc.ExpressAvailable, svc.DripFeedAvailable, svc.ProviderServiceID, svc.UUID)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

func (sr *ServiceRepositoryImpl) Delete(ctx context.Context, svcUUID uuid.UUID) error {
	_, err := sr.db.ExecContext(ctx, `DELETE FROM services WHERE uuid = $1`, svcUUID)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}
