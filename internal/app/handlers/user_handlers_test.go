package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/models"
)

type MockUserService struct {
	mock.Mock
}
type MockTokenService struct {
	mock.Mock
}

func (m *MockUserService) Create(ctx context.Context, email, password, fullName, whatsapp string) (*models.User, error) {
	args := m.Called(ctx, email, password, fullName, whatsapp)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetByUserEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetByUUID(ctx context.Context, userUID *uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockTokenService) GetUserEmail(tokenString string) (string, error) {
	args := m.Called(tokenString)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) GenerateToken(email string) (string, error) {
	args := m.Called(email)
	return args.String(0), args.Error(1)
}

func TestUserHandler_Login(t *testing.T) {
	tests := []struct {
		name             string
		request          string
		mockUserService  func() *MockUserService
		mockTokenService func() *MockTokenService
		wantAuthHeader   string
		wantStatusCode   int
	}{
		{
			name:    "Successful Login",
			request: `{"email":"customer@example.com","password":"password"}`,
			mockUserService: func() *MockUserService {
				m := &MockUserService{}
				user := &models.User{UUID: uuid.New(), Email: "customer@example.com"}
				m.On("Authenticate", mock.Anything, "customer@example.com", "password").Return(user, nil)
				return m
			},
			mockTokenService: func() *MockTokenService {
				m := &MockTokenService{}
				m.On("GenerateToken", "customer@example.com").Return("secret-token", nil)
				return m
			},
			wantAuthHeader: "Bearer secret-token",
			wantStatusCode: http.StatusOK,
		},
		{
			name:    "Invalid Password",
			request: `{"email":"customer@example.com","password":"wrong"}`,
			mockUserService: func() *MockUserService {
				m := &MockUserService{}
				err := appErrors.NewWithCode(errors.New(""), "Invalid password", http.StatusUnauthorized)
				m.On("Authenticate", mock.Anything, "customer@example.com", "wrong").Return((*models.User)(nil), err)
				return m
			},
			mockTokenService: func() *MockTokenService { return &MockTokenService{} },
			wantStatusCode:   http.StatusUnauthorized,
		},
		{
			name:             "Malformed Body",
			request:          `{"email":`,
			mockUserService:  func() *MockUserService { return &MockUserService{} },
			mockTokenService: func() *MockTokenService { return &MockTokenService{} },
			wantStatusCode:   http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewUserHandler(tt.mockUserService(), tt.mockTokenService(), 5)
			req := httptest.NewRequest(http.MethodPost, "/api/user/login", strings.NewReader(tt.request))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			if tt.wantAuthHeader != "" {
				assert.Equal(t, tt.wantAuthHeader, rec.Header().Get("Authorization"))
				assert.Contains(t, rec.Body.String(), "secret-token")
			}
		})
	}
}

func TestUserHandler_Register(t *testing.T) {
	tests := []struct {
		name            string
		request         string
		mockUserService func() *MockUserService
		wantStatusCode  int
	}{
		{
			name:    "Successful Registration",
			request: `{"email":"new@example.com","password":"password","full_name":"New Customer","whatsapp":"+5511999999999"}`,
			mockUserService: func() *MockUserService {
				m := &MockUserService{}
				user := &models.User{UUID: uuid.New(), Email: "new@example.com"}
				m.On("Create", mock.Anything, "new@example.com", "password", "New Customer", "+5511999999999").Return(user, nil)
				return m
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:    "Duplicate Email",
			request: `{"email":"taken@example.com","password":"password"}`,
			mockUserService: func() *MockUserService {
				m := &MockUserService{}
				err := appErrors.NewWithCode(errors.New(""), "email already registered", http.StatusConflict)
				m.On("Create", mock.Anything, "taken@example.com", "password", "", "").Return((*models.User)(nil), err)
				return m
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name:            "Missing Credentials",
			request:         `{"full_name":"No Email"}`,
			mockUserService: func() *MockUserService { return &MockUserService{} },
			wantStatusCode:  http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenService := &MockTokenService{}
			tokenService.On("GenerateToken", mock.Anything).Return("secret-token", nil)
			handler := NewUserHandler(tt.mockUserService(), tokenService, 5)
			req := httptest.NewRequest(http.MethodPost, "/api/user/register", strings.NewReader(tt.request))
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
		})
	}
}
