package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/adonhq/assessment-backend/internal/middleware"
	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/response"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/adonhq/assessment-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminAccounts is the admin service behind the auth endpoints.
type AdminAccounts interface {
	Login(ctx context.Context, email, password string) (*model.AdminLoginResponse, error)
	GetByID(ctx context.Context, id int) (*model.Admin, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	admins AdminAccounts
	log    zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(admins AdminAccounts, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		admins: admins,
		log:    log.With().Str("component", "auth_handler").Logger(),
	}
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
// Validates email + password and returns a JWT.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.admins.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		h.log.Error().Err(err).Msg("Admin login failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// GetAdminProfile godoc
// GET /api/v1/auth/admin/me
// Returns the profile of the currently authenticated admin.
func (h *AuthHandler) GetAdminProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	admin, err := h.admins.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"admin": admin})
}
