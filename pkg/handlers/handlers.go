// Package handlers assembles the HTTP API from the per-resource handlers.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apispec "github.com/chris/student-escrow-market/api"
	"github.com/chris/student-escrow-market/pkg/api"
	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/handlers/disputes"
	"github.com/chris/student-escrow-market/pkg/handlers/orders"
	"github.com/chris/student-escrow-market/pkg/handlers/payments"
	"github.com/chris/student-escrow-market/pkg/handlers/wallets"
	"github.com/chris/student-escrow-market/pkg/middleware"
	"github.com/chris/student-escrow-market/pkg/render"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/swaggest/swgui/v5emb"
)

// ApiHandler implements the generated server interface.
type ApiHandler struct {
	*orders.OrdersHandler
	*disputes.DisputesHandler
	*wallets.WalletsHandler
	*payments.WebhookHandler
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(o *orders.OrdersHandler, d *disputes.DisputesHandler, w *wallets.WalletsHandler, p *payments.WebhookHandler) *ApiHandler {
	return &ApiHandler{OrdersHandler: o, DisputesHandler: d, WalletsHandler: w, WebhookHandler: p}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)

// GetHealth reports liveness.
func (h *ApiHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, api.Health{Status: "ok"})
}

// ParamErrorHandler renders parameter binding failures in the error envelope.
func ParamErrorHandler(logger *slog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		var paramErr *api.InvalidParamFormatError
		if errors.As(err, &paramErr) {
			err = apperrors.Validation("invalid " + paramErr.ParamName)
		} else {
			err = apperrors.Wrap(apperrors.KindValidation, err, "invalid request")
		}
		render.Error(w, r, logger, err)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigin string
	Auth       *middleware.Authenticator
	Logger     *slog.Logger
	// WebSocket is mounted on /ws when set.
	WebSocket http.Handler
}

// NewRouter mounts the API, its OpenAPI document with a Swagger UI under
// /docs, and the optional websocket endpoint on a chi router.
func NewRouter(h api.ServerInterface, opts RouterOptions) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.NewStructuredLogger(opts.Logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: opts.CORSOrigin != "*",
		MaxAge:           300,
	}))

	router.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(apispec.Spec)
	})
	router.Mount("/docs", v5emb.New("Escrow Market API", "/openapi.yaml", "/docs/"))

	if opts.WebSocket != nil {
		router.Handle("/ws", opts.WebSocket)
	}

	return api.HandlerWithOptions(h, api.ChiServerOptions{
		BaseRouter:       router,
		Middlewares:      []api.MiddlewareFunc{opts.Auth.Middleware},
		ErrorHandlerFunc: ParamErrorHandler(opts.Logger),
	})
}
