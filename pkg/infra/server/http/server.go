// Package http provides the gin based HTTP server.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/rag-ask/pkg/infra/middleware"
	"github.com/kart-io/rag-ask/pkg/infra/middleware/observability"
	"github.com/kart-io/rag-ask/pkg/infra/middleware/resilience"
	mwopts "github.com/kart-io/rag-ask/pkg/options/middleware"
	options "github.com/kart-io/rag-ask/pkg/options/server/http"
	apierrors "github.com/kart-io/rag-ask/pkg/utils/errors"
	"github.com/kart-io/rag-ask/pkg/utils/response"
	"github.com/kart-io/rag-ask/pkg/utils/validator"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	mwOpts *mwopts.Options
	engine *gin.Engine

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// NewServer creates a new HTTP server with the given options.
//
// 中间件在创建时即注册，之后注册的路由都会继承：
// recovery -> request-id -> tracing -> access log -> body limit
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) *Server {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}
	if middlewareOpts == nil {
		middlewareOpts = mwopts.NewOptions()
	}

	gin.SetMode(serverOpts.Mode)
	engine := gin.New()

	// 注册 notblank 等自定义绑定规则
	if err := validator.RegisterGinRules(); err != nil {
		logger.Warnw("Failed to register binding rules", "error", err)
	}

	s := &Server{
		opts:   serverOpts,
		mwOpts: middlewareOpts,
		engine: engine,
	}
	s.applyMiddleware()

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return s
}

func (s *Server) applyMiddleware() {
	mw := s.mwOpts

	var metricsPath string
	if mw.Metrics != nil && mw.Metrics.Enabled {
		metricsPath = mw.Metrics.Path
	}

	if mw.Recovery != nil {
		s.engine.Use(resilience.RecoveryWithOptions(*mw.Recovery, nil))
	}
	if mw.RequestID != nil {
		s.engine.Use(middleware.RequestIDWithOptions(*mw.RequestID))
	}
	s.engine.Use(observability.Tracing(metricsPath))
	if mw.Logger != nil {
		s.engine.Use(observability.LoggerWithOptions(*mw.Logger))
	}
	if mw.BodyLimit != nil {
		s.engine.Use(resilience.BodyLimitWithOptions(*mw.BodyLimit))
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("http server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	s.addr = ln.Addr()

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
