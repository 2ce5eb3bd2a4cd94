package cmd

import (
	"context"
	"fmt"
	"golang-scheduled-task/internal/delivery/http"
	"golang-scheduled-task/pkg/middleware"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	ctx     context.Context
	appDep  *AppDependency
	handler *http.HttpAPIHandler
}

func NewHTTPServer(ctx context.Context, appDep *AppDependency, handler *http.HttpAPIHandler) *HTTPServer {
	return &HTTPServer{
		ctx:     ctx,
		appDep:  appDep,
		handler: handler,
	}
}

func (s *HTTPServer) Start() error {
	s.appDep.log.Info("Starting HTTP server", zap.Int("port", s.appDep.cfg.API.Port))
	address := fmt.Sprintf(":%d", s.appDep.cfg.API.Port)

	s.SetupRoutes()

	return s.appDep.echo.Start(address)
}

func (s *HTTPServer) Stop() error {
	s.appDep.log.Info("Shutting down HTTP server")

	// s.ctx is already cancelled at this point, so the deadline starts fresh.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.appDep.echo.Shutdown(ctx); err != nil {
		s.appDep.log.Warn("HTTP server did not stop in time", zap.Error(err), zap.Duration("timeout", shutdownTimeout))
		return s.appDep.echo.Close()
	}
	s.appDep.log.Info("HTTP server stopped")
	return nil
}

func (s *HTTPServer) SetupRoutes() {
	s.appDep.echo.Use(middleware.NewRequestLogger(s.appDep.log)...)
	s.appDep.echo.Use(middleware.NewRateLimiterMiddleware(s.appDep.cfg.API.RateLimit, s.appDep.cfg.API.RateBurst))
	s.handler.SetupRoutes()
}
