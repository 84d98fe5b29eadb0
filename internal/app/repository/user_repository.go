package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
)

type UserRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUUID(ctx context.Context, userUID *uuid.UUID) (*models.User, error)
	GetDB() *sqlx.DB
}

type UserRepositoryImpl struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

func (ur *UserRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, user *models.User) error {
	query := `INSERT INTO users (uuid, email, password_hash, full_name, whatsapp, is_admin, birth_date, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err := tx.ExecContext(ctx, query,
		user.UUID, user.Email, user.PasswordHash, user.FullName, user.Whatsapp, user.IsAdmin, user.BirthDate, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			return appErrors.NewWithCode(err, "email already registered", http.StatusConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (ur *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1;`
	user := &models.User{}
	err := ur.db.GetContext(ctx, user, query, email)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "User not found", http.StatusNotFound)
	}
	return user, nil
}

func (ur *UserRepositoryImpl) FindByUUID(ctx context.Context, userUID *uuid.UUID) (*models.User, error) {
	query := `SELECT * FROM users WHERE uuid = $1;`
	user := &models.User{}
	err := ur.db.GetContext(ctx, user, query, userUID)
	if err != nil {
		return nil, appErrors.NewWithCode(err, "User not found", http.StatusNotFound)
	}
	return user, nil
}

func (ur *UserRepositoryImpl) GetDB() *sqlx.DB {
	return ur.db
}
