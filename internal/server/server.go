// Package server exposes the ingestion pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ralt/pkgfeed/internal/models"
	"github.com/sirupsen/logrus"
)

// UploadField is the multipart form field carrying the package
const UploadField = "package"

// Ingester runs one ingestion attempt
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader) (models.Outcome, error)
}

// Response is the JSON body of an upload response
type Response struct {
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Options tunes the router
type Options struct {
	// MaxUploadBytes <= 0 disables the size limit
	MaxUploadBytes int64
	// SigningKey is the armored public key served next to uploads, if any
	SigningKey []byte
}

// New builds the HTTP router
func New(ingester Ingester, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logrus.WithFields(logrus.Fields{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latency":   v.Latency,
				"remote_ip": c.RealIP(),
			}).Debug("request")
			return nil
		},
	}))

	h := &handler{ingester: ingester, maxUploadBytes: opts.MaxUploadBytes, signingKey: opts.SigningKey}
	e.PUT("/api/v2/package", h.upload)
	e.GET("/api/v2/signing-key", h.serveSigningKey)
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	return e
}

type handler struct {
	ingester       Ingester
	maxUploadBytes int64
	signingKey     []byte
}

func (h *handler) serveSigningKey(c echo.Context) error {
	if len(h.signingKey) == 0 {
		return c.JSON(http.StatusNotFound, Response{Error: "packages are not signed"})
	}
	return c.Blob(http.StatusOK, "application/pgp-keys", h.signingKey)
}

func (h *handler) upload(c echo.Context) error {
	req := c.Request()
	if h.maxUploadBytes > 0 {
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes)
	}

	body, err := packageStream(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
	}

	outcome, err := h.ingester.Ingest(req.Context(), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, Response{
				Error: fmt.Sprintf("package exceeds %d bytes", tooLarge.Limit),
			})
		}
		return c.JSON(http.StatusInternalServerError, Response{Error: "internal error while ingesting package"})
	}

	return c.JSON(StatusFor(outcome), Response{Outcome: outcome.String()})
}

// StatusFor maps an ingestion outcome to an HTTP status
func StatusFor(outcome models.Outcome) int {
	switch outcome {
	case models.Success:
		return http.StatusCreated
	case models.InvalidPackage:
		return http.StatusBadRequest
	case models.PackageAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// packageStream returns the uploaded package: the "package" part of a
// multipart body, or the raw body otherwise
func packageStream(req *http.Request) (io.Reader, error) {
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return req.Body, nil
	}

	mr, err := req.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("multipart body has no %q field", UploadField)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		if part.FormName() == UploadField {
			return part, nil
		}
	}
}

// Run serves e on listen until ctx is cancelled, then shuts down
// gracefully
func Run(ctx context.Context, e *echo.Echo, listen string) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Listening on %s", listen)
		if err := e.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
