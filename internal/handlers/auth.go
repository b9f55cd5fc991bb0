package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/intervia/intervia/internal/middleware"
	"github.com/intervia/intervia/internal/models"
	"github.com/intervia/intervia/internal/services"
	appErrors "github.com/intervia/intervia/pkg/errors"
	"github.com/intervia/intervia/pkg/metrics"
	"github.com/intervia/intervia/pkg/response"
)

// AuthHandler exposes the signup, login, and token endpoints.
type AuthHandler struct {
	db    *gorm.DB
	auth  *services.AuthService
	reset *services.PasswordResetService
}

// NewAuthHandler wires the auth endpoints to their services.
func NewAuthHandler(db *gorm.DB, auth *services.AuthService, reset *services.PasswordResetService) (*AuthHandler, error) {
	if db == nil {
		return nil, errors.New("auth handler: db is required")
	}
	if auth == nil {
		return nil, errors.New("auth handler: auth service is required")
	}
	if reset == nil {
		return nil, errors.New("auth handler: password reset service is required")
	}
	return &AuthHandler{db: db, auth: auth, reset: reset}, nil
}

type signupRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/signup
// Issues (or refreshes) the email verification code that gates account creation.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.auth.RequestSignupOTP(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	path := "created"
	if message == "OTP updated successfully" {
		path = "resent"
	}
	metrics.SignupOTPs.WithLabelValues(path).Inc()

	response.Success(c, http.StatusCreated, gin.H{"message": message})
}

type verifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	ImgURL   string `json:"imgURL" validate:"omitempty,url"`
}

// POST /api/auth/verify-otp
// Exchanges a valid verification code for a new account and its tokens.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.VerifyOTPAndRegister(c.Request.Context(), services.VerifyOTPInput{
		Email:    req.Email,
		OTP:      req.OTP,
		Password: req.Password,
		Name:     req.Name,
		ImgURL:   req.ImgURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	metrics.Registrations.Inc()

	response.Success(c, http.StatusOK, gin.H{
		"message":      result.Message,
		"token":        result.Token,
		"refreshToken": result.RefreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	response.Success(c, http.StatusOK, gin.H{
		"message":      result.Message,
		"token":        result.Token,
		"refreshToken": result.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	access, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"accessToken": access,
		"message":     "Token refreshed successfully",
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/forgot-password
// Always answers 200 for well-formed requests so the endpoint cannot be used
// to probe which emails have accounts.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.reset.Request(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "If an account exists for that email, a reset code has been sent",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.reset.Reset(c.Request.Context(), req.Token, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password reset successful"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":     user.ID,
		"email":  user.Email,
		"name":   user.Name,
		"imgURL": user.ImgURL,
	})
}
