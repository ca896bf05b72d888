package api

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/elastic-io/mediagate/internal/config"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type API interface {
	Init(*config.Config)
	RegisterRoutes(*fiber.App)
}

var apis = map[string]API{}

func APIRegister(name string, api API) {
	if _, ok := apis[name]; ok {
		panic(fmt.Errorf("API %s already registered", name))
	}
	apis[name] = api
}

type Server struct {
	config *config.Config
	router *fiber.App
	apis   []API
	logger *zap.Logger
}

func New(c *config.Config) *Server {
	readTimeout, writeTimeout, idleTimeout := c.Timeouts()
	s := &Server{
		config: c,
		logger: log.Named("http"),
	}
	s.router = fiber.New(fiber.Config{
		BodyLimit:             c.BodyLimit,
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		// 请求体以流的形式交给 multipart 解析，不整体缓冲
		StreamRequestBody:            true,
		DisablePreParseMultipartForm: true,
		ReadTimeout:                  readTimeout,
		WriteTimeout:                 writeTimeout,
		IdleTimeout:                  idleTimeout,
		ReadBufferSize:               16 * types.KB,
		WriteBufferSize:              16 * types.KB,

		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			s.logger.Error("HTTP error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err))
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	s.router.Use(s.loggingMiddleware())

	s.router.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			s.logger.Error("Recovered from panic",
				zap.Any("panic", e),
				zap.ByteString("stack", debug.Stack()))
		},
	}))

	return s
}

// Router 测试时可直接通过 app.Test 发请求
func (s *Server) Router() *fiber.App {
	return s.router
}

func (s *Server) Init() error {
	if len(apis) == 0 {
		return fmt.Errorf("no APIs registered")
	}

	seen := map[string]bool{}
	for _, mod := range s.config.Modules {
		if seen[mod] {
			continue
		}
		seen[mod] = true
		api, ok := apis[mod]
		if !ok {
			return fmt.Errorf("API module %s not found", mod)
		}
		s.apis = append(s.apis, api)
	}

	s.router.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	for _, api := range s.apis {
		api.Init(s.config)
		api.RegisterRoutes(s.router)
	}

	return nil
}

func (s *Server) Serve() error {
	s.logger.Info("Starting server", zap.String("endpoint", s.config.Endpoint))

	if s.config.CertFile != "" && s.config.KeyFile != "" {
		s.logger.Info("Using HTTPS",
			zap.String("cert", s.config.CertFile),
			zap.String("key", s.config.KeyFile))
		return s.router.ListenTLS(s.config.Endpoint, s.config.CertFile, s.config.KeyFile)
	}

	s.logger.Warn("Using insecure HTTP mode")
	return s.router.Listen(s.config.Endpoint)
}

func (s *Server) Done() error {
	if s.router != nil {
		return s.router.Shutdown()
	}
	return nil
}

func (s *Server) loggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		s.logger.Debug("Request started", zap.String("method", c.Method()), zap.String("path", c.Path()))

		err := c.Next()

		s.logger.Info("Request completed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("elapsed", time.Since(start)))
		return err
	}
}
