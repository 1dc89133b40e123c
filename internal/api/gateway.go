// Package api hosts the HTTP status gateway: a liveness page for the
// hosting platform and the Prometheus metrics endpoint.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tikdrop/pkg/logger"
)

var log = logger.Get("API")

const statusPage = `<!DOCTYPE html>
<html>
<head><title>RS TikTok Downloader</title></head>
<body>
  <h1>RS TikTok Downloader</h1>
  <p>Bot de Telegram para descargar videos de TikTok</p>
  <p>Bot Activo</p>
</body>
</html>`

type Config struct {
	HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:7860"`
}

// StatusGateway is a thin wrapper around the Echo router exposing the
// liveness page and metrics. It serves nothing request-scoped; all
// bot traffic flows through Telegram long polling instead.
type StatusGateway struct {
	config *Config
	ec     *echo.Echo
}

func NewStatusGateway(config *Config) *StatusGateway {
	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true

	ec.Use(middleware.Recover())
	ec.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, values middleware.RequestLoggerValues) error {
			log.Emit(logger.DEBUG, "%s %s %d\n", values.Method, values.URI, values.Status)
			return nil
		},
	}))

	ec.GET("/", func(ec echo.Context) error {
		return ec.HTML(http.StatusOK, statusPage)
	})
	ec.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &StatusGateway{config: config, ec: ec}
}

// Run starts the gateway and blocks until the context is cancelled or
// the server fails.
func (gateway *StatusGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)

	go func() {
		log.Emit(logger.INFO, "Status gateway listening on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	<-ctx.Done()
	gateway.ec.Close()

	// Parent cancellation is a normal shutdown, not an error.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
