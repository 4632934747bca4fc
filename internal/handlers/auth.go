package handlers

import (
	"authgate/internal/config"
	"authgate/internal/logger"
	"authgate/internal/middleware"
	"authgate/internal/models"
	"authgate/internal/services"
	helpers "authgate/internal/utils/helpres"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *services.AuthService
	jwtSecret   string
	accessTTL   time.Duration
}

func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	ttl, err := time.ParseDuration(cfg.AccessTokenTTL)
	if err != nil || ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthHandler{
		authService: authService,
		jwtSecret:   cfg.JWTSecret,
		accessTTL:   ttl,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  models.UserResponse `json:"user"`
	Token string              `json:"token"`
}

// Register godoc
// @Summary Регистрация нового пользователя
// @Tags auth
// @Accept json
// @Produce json
// @Param input body registerRequest true "Данные регистрации"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} helpers.Response
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("Ошибка декодирования JSON в Register", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		log.Warn("Неполные данные регистрации")
		helpers.Error(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if len(req.Password) < services.MinPasswordLength {
		log.Warn("Слишком короткий пароль при регистрации", zap.String("username", req.Username))
		helpers.Error(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", services.MinPasswordLength))
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
	}

	err := h.authService.RegisterUser(r.Context(), user, req.Password)
	switch {
	case errors.Is(err, services.ErrUsernameTaken), errors.Is(err, services.ErrEmailTaken):
		log.Warn("Конфликт при регистрации", zap.String("username", req.Username), zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "user with this email or username already exists")
		return
	case err != nil:
		log.Error("Ошибка регистрации пользователя", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	helpers.JSON(w, http.StatusCreated, map[string]interface{}{"user": user.ToResponse()})
}

// Login godoc
// @Summary Авторизация пользователя
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginRequest true "Данные для входа"
// @Success 200 {object} loginResponse
// @Failure 401 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("Ошибка декодирования JSON в Login", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		helpers.Error(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if len(req.Password) < services.MinPasswordLength {
		helpers.Error(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", services.MinPasswordLength))
		return
	}

	token, user, err := h.authService.LoginUser(r.Context(), req.Username, req.Password, h.jwtSecret, h.accessTTL)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		log.Warn("Вход: пользователь не найден", zap.String("username", req.Username))
		helpers.Error(w, http.StatusNotFound, "user not found")
		return
	case errors.Is(err, services.ErrInvalidPassword):
		log.Warn("Вход: неверный пароль", zap.String("username", req.Username))
		helpers.Error(w, http.StatusUnauthorized, "invalid password")
		return
	case err != nil:
		log.Error("Ошибка входа", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	helpers.JSON(w, http.StatusOK, loginResponse{User: user.ToResponse(), Token: token})
}

// Profile godoc
// @Summary Получить данные профиля
// @Tags profile
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} helpers.Response
// @Router /api/v1/profile [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || userID == 0 {
		log.Warn("Profile: отсутствует user_id в контексте")
		helpers.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		log.Warn("Profile: пользователь не найден", zap.Int("user_id", userID))
		helpers.Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	helpers.JSON(w, http.StatusOK, user.ToResponse())
}
