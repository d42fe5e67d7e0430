// Package server assembles repositories, services, handlers and
// middleware into a runnable Echo instance.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/vinovest/sqlx"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/handler"
	"github.com/danielolaru91/AuthSystem/internal/mail"
	"github.com/danielolaru91/AuthSystem/internal/middleware"
	"github.com/danielolaru91/AuthSystem/internal/repository"
	"github.com/danielolaru91/AuthSystem/internal/router"
	"github.com/danielolaru91/AuthSystem/internal/service"
	"github.com/danielolaru91/AuthSystem/internal/utils"
)

// Server is the wired HTTP application.
type Server struct {
	Echo     *echo.Echo
	Sessions *service.SessionService
	Accounts *service.AccountService

	cfg *config.Config
	log *zap.Logger
}

// New wires the application.  rdb may be nil, which disables rate limiting
// and response caching.
func New(cfg *config.Config, db *sqlx.DB, rdb *redis.Client, mailer mail.Mailer, log *zap.Logger) (*Server, error) {
	codec, err := utils.NewTokenCodec(cfg.Auth)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	roles := repository.NewRoleRepo(db)
	companies := repository.NewCompanyRepo(db)

	sessions := service.NewSessionService(users, tokens, codec, cfg.Auth, log.Named("session"))
	accounts := service.NewAccountService(users, mailer, mail.Composer{PublicURL: cfg.Server.PublicURL}, cfg.Auth, log.Named("account"))
	userSvc := service.NewUserService(users, roles, sessions, accounts, log.Named("users"))

	cookies := handler.Cookies{Secure: cfg.Server.CookieSecure}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(echomw.Secure())
	if cfg.Server.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.Server.BodyLimit))
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.Server.AllowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		}))
	}

	session := middleware.SessionAuth(sessions, log.Named("auth"))
	limiter := middleware.NewTokenBucket(cfg.RateLimit, rdb, log.Named("ratelimit"))
	cache := middleware.NewRedisCache(cfg.Cache, rdb, log.Named("cache"))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(sessions, accounts, cookies, log.Named("auth")), session, limiter)
	router.RegisterUsers(e, handler.NewUserHandler(userSvc, cookies, log.Named("users")), session)
	router.RegisterCompanies(e, handler.NewCompanyHandler(companies, log.Named("companies")), session)
	router.RegisterRoles(e, handler.NewRoleHandler(roles, log.Named("roles")), session, cache)

	return &Server{Echo: e, Sessions: sessions, Accounts: accounts, cfg: cfg, log: log}, nil
}

// Seed creates the configured bootstrap SuperAdmin, if any.
func (s *Server) Seed(ctx context.Context) error {
	return s.Accounts.EnsureSuperAdmin(ctx, s.cfg.Seed.AdminEmail, s.cfg.Seed.AdminPassword)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.log.Info("listening", zap.String("addr", addr), zap.String("env", s.cfg.Env))
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
