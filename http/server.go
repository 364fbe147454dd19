// Package http 提供贷款预测HTTP服务
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"loanscore/config"
	"loanscore/ml"
	"loanscore/monitoring"
	"loanscore/predictor"
)

// Predictor 预测服务接口
type Predictor interface {
	Predict(ctx context.Context, app ml.LoanApplication) (*predictor.Prediction, error)
	ModelInfo() []byte
}

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MaxBodyBytes    int64
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfigFrom(config.Default().HTTP)
}

// ServerConfigFrom 从配置文件的http部分构造服务器配置
func ServerConfigFrom(c config.HTTPConfig) ServerConfig {
	return ServerConfig{
		Port:            c.Port,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		IdleTimeout:     c.IdleTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
		AllowedOrigins:  c.AllowedOrigins,
		MaxBodyBytes:    c.MaxBodyBytes,
	}
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, svc Predictor, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux, &handlers{svc: svc, metrics: metrics, logger: logger})

	// 创建中间件链
	chain := Chain(
		RecoveryMiddleware(logger),            // 1. 恢复中间件（最先执行，捕获panic）
		RequestIDMiddleware,                   // 2. 请求ID
		LoggerMiddleware(logger),              // 3. 访问日志
		metrics.Middleware,                    // 4. 请求指标
		SecurityHeadersMiddleware,             // 5. 安全头中间件
		CORSMiddleware(config.AllowedOrigins), // 6. CORS中间件
		RequestSizeMiddleware(config.MaxBodyBytes),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		logger: logger,
	}
}

// Start 启动服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器，等待进行中的请求完成
func (s *Server) Stop() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}

// Handler 返回包含全部中间件的处理器
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
