package middlware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	appContext "github.com/instafly/instafly/internal/app/context"
	"github.com/instafly/instafly/internal/app/handlers"
	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/service"
)

type AuthMiddleware struct {
	tokenService   service.TokenService
	userService    service.UserService
	contextTimeout time.Duration
}

func NewAuthMiddleware(tokenService service.TokenService, userService service.UserService, contextTimeoutSec int) AuthMiddleware {
	return AuthMiddleware{
		tokenService:   tokenService,
		userService:    userService,
		contextTimeout: time.Duration(contextTimeoutSec) * time.Second,
	}
}

func (am *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), am.contextTimeout)
		defer cancel()

		authHeader := r.Header.Get("Authorization")
		parts := strings.Split(authHeader, "Bearer ")
		if len(parts) != 2 {
			handlers.WriteJSONErrorResponse(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}
		token := parts[1]

		userEmail, err := am.tokenService.GetUserEmail(token)
		if err != nil {
			logger.Log.Error("failed to get user email", zap.Error(err))
			handlers.WriteJSONErrorResponse(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := am.userService.GetByUserEmail(ctx, userEmail)
		if err != nil {
			logger.Log.Error("failed to get user", zap.Error(err))
			handlers.WriteJSONErrorResponse(w, "Unauthorized: User not found", http.StatusUnauthorized)
			return
		}

		err = appContext.GetContextError(ctx)
		if err != nil {
			handlers.PrepareError(w, err)
			return
		}

		reqCtx := appContext.WithUserUID(r.Context(), &user.UUID)
		reqCtx = appContext.WithIsAdmin(reqCtx, user.IsAdmin)
		next.ServeHTTP(w, r.WithContext(reqCtx))
	})
}

// RequireAdmin must run after Authenticate.
func (am *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !appContext.IsAdmin(r.Context()) {
			handlers.WriteJSONErrorResponse(w, "Forbidden: Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
