// Package handler exposes the discount service over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
	"github.com/zaincode21/uruti-discounts/pkg/httpmiddleware"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// RequestTimeout bounds every API request. Zero disables the bound.
	RequestTimeout time.Duration
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the /api routes.
type Handler struct {
	svc      *discount.Service
	admin    httpmiddleware.KeyVerifier
	validate *validator.Validate

	timeout time.Duration
	maxBody int64
}

// New creates a Handler. A nil admin verifier leaves admin routes open.
func New(cfg Config, svc *discount.Service, admin httpmiddleware.KeyVerifier) *Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{
		svc:      svc,
		admin:    admin,
		validate: newValidator(),
		timeout:  cfg.RequestTimeout,
		maxBody:  maxBody,
	}
}

// Routes returns the API router. Outer middlewares (recovery, request id,
// logger injection) are applied by the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errorBody{Code: "not_found", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errorBody{Code: "method_not_allowed", Message: "method not allowed"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", h.listDiscounts)
			r.Get("/{id}", h.getDiscount)
			r.Post("/{id}/evaluate", h.evaluate)
			r.Post("/{id}/calculate", h.calculate)

			r.Group(func(r chi.Router) {
				if h.admin != nil {
					r.Use(httpmiddleware.APIKey(h.admin))
				}
				r.Post("/", h.createDiscount)
				r.Put("/{id}", h.updateDiscount)
				r.Delete("/{id}", h.deleteDiscount)
			})
		})

		r.Route("/orders/{orderID}/discounts", func(r chi.Router) {
			r.Post("/", h.applyDiscount)
			r.Get("/", h.listApplications)
		})
	})
	return r
}
