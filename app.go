// Package gallerypress accepts mosaic-design submissions from a web
// frontend, uploads their images to the Shopify Files API, publishes a blog
// article referencing them, and separately emails PDF/PNG attachments via
// SendGrid. Each request is a single stateless pipeline invocation; the only
// local state is an operational delivery log.
package gallerypress

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// App wires together configuration, the platform clients, the delivery log,
// and the HTTP surface.
type App struct {
	cfg     Config
	e       *echo.Echo
	shopify *ShopifyClient
	upload  FileUploader
	mailer  *MailClient
	store   *Store

	loginLimiter *ipLimiter
}

// New builds a ready-to-start App from configuration. The upload strategy is
// resolved here, once; handlers never branch on it.
func New(cfg Config) (*App, error) {
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("gallerypress: AdminPassword is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("gallerypress: SessionSecret is required")
	}

	store, err := NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("gallerypress: init store: %w", err)
	}

	client := NewShopifyClient(cfg)
	var uploader FileUploader
	switch cfg.Strategy {
	case StrategyStaged:
		uploader = newStagedUploader(client)
	default:
		uploader = newDirectUploader(client)
	}

	a := &App{
		cfg:          cfg,
		shopify:      client,
		upload:       uploader,
		mailer:       NewMailClient(cfg),
		store:        store,
		loginLimiter: newIPLimiter(5, loginWindow),
	}
	a.e = echo.New()
	a.e.HideBanner = true
	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

// Start runs the HTTP server until shutdown.
func (a *App) Start() error {
	if err := a.e.Start(a.cfg.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources. Call when the app is shutting down.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *App) setupMiddleware() {
	e := a.e

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Attachments arrive base64-encoded in the JSON body; cap the body
	// before parsing to bound memory use.
	e.Use(middleware.BodyLimit(a.cfg.MaxBodySize))

	if len(a.cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: a.cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType},
		}))
	}

	e.Use(session.Middleware(a.newSessionStore()))
}

func (a *App) setupRoutes() {
	e := a.e

	e.GET("/healthz", handleHealth)

	e.POST("/api/submissions", a.handleSubmission)
	e.POST("/api/notify", a.handleNotify)

	e.POST("/admin/login", a.handleAdminLogin)
	e.POST("/admin/logout", handleAdminLogout)
	e.GET("/admin/deliveries", a.handleDeliveries)
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// httpErrorHandler turns every error that escapes a handler into the uniform
// ok/error envelope, including echo's own 404/405/413 errors.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if s, ok := he.Message.(string); ok {
			msg = strings.ToLower(s)
		}
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}

// upstreamJSON reports a failed platform call as a 502 with the upstream
// status and truncated body preserved in detail.
func upstreamJSON(c echo.Context, what string, err error) error {
	detail := err.Error()
	var ue *UpstreamError
	if errors.As(err, &ue) {
		detail = ue.Error()
	}
	return c.JSON(http.StatusBadGateway, errorResponse{Error: what, Detail: detail})
}

// logDelivery appends to the delivery log. A write failure is logged and
// swallowed: the primary operation already succeeded.
func (a *App) logDelivery(c echo.Context, d Delivery) {
	if err := a.store.SaveDelivery(d); err != nil {
		c.Logger().Errorf("record delivery: %v", err)
	}
}
