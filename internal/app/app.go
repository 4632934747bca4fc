package app

import (
	"authgate/internal/config"
	"authgate/internal/db"
	"authgate/internal/handlers"
	"authgate/internal/repository"
	"authgate/internal/routes"
	"authgate/internal/services"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

func InitApp(cfg *config.Config) (*mux.Router, error) {
	conn, err := db.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}

	// Репозитории
	userRepo := repository.NewUserRepository(conn)
	resetRepo := repository.NewPasswordResetRepository(conn)

	// Сервисы
	authService := services.NewAuthService(userRepo)
	emailService := services.NewEmailService(cfg)
	passwordService := services.NewPasswordService(
		resetRepo,
		userRepo,
		emailService,
		cfg.AppBaseURL,
		resetTokenTTL(cfg),
	)

	// Хендлеры
	authHandler := handlers.NewAuthHandler(authService, cfg)
	passwordHandler := handlers.NewPasswordHandler(passwordService, userRepo)

	// Маршруты
	router := mux.NewRouter()
	routes.InitRoutes(router, cfg.JWTSecret, authHandler, passwordHandler)

	return router, nil
}

func resetTokenTTL(cfg *config.Config) time.Duration {
	minutes, err := strconv.Atoi(cfg.PasswordResetTTLMin)
	if err != nil || minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}
