package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appContext "github.com/instafly/instafly/internal/app/context"
	appErrors "github.com/instafly/instafly/internal/app/errors"
	"github.com/instafly/instafly/internal/app/service"
)

const errMsgUnableReadBody = "Unable to read body"

type (
	UserHandler struct {
		userService    service.UserService
		tokenService   service.TokenService
		contextTimeout time.Duration
	}
	UserRegisterDto struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Whatsapp string `json:"whatsapp"`
	}
	UserLoginDto struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	AuthResponseDto struct {
		Token string `json:"token"`
	}
)

func NewUserHandler(userService service.UserService, tokenService service.TokenService, contextTimeoutSec int) *UserHandler {
	return &UserHandler{
		userService:    userService,
		tokenService:   tokenService,
		contextTimeout: time.Duration(contextTimeoutSec) * time.Second,
	}
}

// Register creates the account and its wallet and signs the user in.
func (uh *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), uh.contextTimeout)
	defer cancel()

	request := UserRegisterDto{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}
	if request.Email == "" || request.Password == "" {
		msg := "email and password are required"
		PrepareError(w, appErrors.NewWithCode(errors.New(msg), msg, http.StatusBadRequest))
		return
	}

	user, err := uh.userService.Create(ctx, request.Email, request.Password, request.FullName, request.Whatsapp)
	if err != nil {
		PrepareError(w, err)
		return
	}
	token, err := uh.tokenService.GenerateToken(user.Email)
	if err != nil {
		PrepareError(w, err)
		return
	}

	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, AuthResponseDto{Token: token})
}

func (uh *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), uh.contextTimeout)
	defer cancel()

	request := UserLoginDto{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		PrepareError(w, appErrors.NewWithCode(err, errMsgUnableReadBody, http.StatusBadRequest))
		return
	}

	user, err := uh.userService.Authenticate(ctx, request.Email, request.Password)
	if err != nil {
		PrepareError(w, err)
		return
	}
	token, err := uh.tokenService.GenerateToken(user.Email)
	if err != nil {
		PrepareError(w, err)
		return
	}

	if err := appContext.GetContextError(ctx); err != nil {
		PrepareError(w, err)
		return
	}
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, AuthResponseDto{Token: token})
}
