package disputes

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chris/student-escrow-market/pkg/api"
	"github.com/chris/student-escrow-market/pkg/mapping"
	"github.com/chris/student-escrow-market/pkg/middleware"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/render"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// DisputeService is the dispute workflow behind the endpoints.
type DisputeService interface {
	OpenDispute(ctx context.Context, caller models.Principal, orderID, reason string) (*models.OrderView, error)
	ListDisputes(ctx context.Context, caller models.Principal, status string) ([]models.DisputeSummary, error)
	ResolveDispute(ctx context.Context, caller models.Principal, disputeID string, resolution models.Resolution, notes string) (*models.OrderView, error)
}

// DisputesHandler holds the dependencies for dispute-related handlers.
type DisputesHandler struct {
	Service DisputeService
	Logger  *slog.Logger
}

// NewDisputesHandler creates a new DisputesHandler.
func NewDisputesHandler(service DisputeService, logger *slog.Logger) *DisputesHandler {
	return &DisputesHandler{Service: service, Logger: logger}
}

// OpenDispute opens a dispute on an order in escrow.
func (h *DisputesHandler) OpenDispute(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	var body api.NewDispute
	if err := render.DecodeJSON(r, &body); err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}

	caller := middleware.PrincipalFrom(r.Context())
	view, err := h.Service.OpenDispute(r.Context(), caller, orderID.String(), body.Reason)
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, api.OrderResponse{Order: mapping.ToApiOrder(caller, view)})
}

// ListDisputes returns disputes for staff, open ones by default.
func (h *DisputesHandler) ListDisputes(w http.ResponseWriter, r *http.Request, params api.ListDisputesParams) {
	status := ""
	if params.Status != nil {
		status = *params.Status
	}

	items, err := h.Service.ListDisputes(r.Context(), middleware.PrincipalFrom(r.Context()), status)
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, api.DisputeList{Disputes: mapping.ToApiDisputeSummaries(items)})
}

// ResolveDispute applies the staff decision.
func (h *DisputesHandler) ResolveDispute(w http.ResponseWriter, r *http.Request, disputeID openapi_types.UUID) {
	var body api.DisputeResolution
	if err := render.DecodeJSON(r, &body); err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	notes := ""
	if body.Notes != nil {
		notes = *body.Notes
	}

	caller := middleware.PrincipalFrom(r.Context())
	view, err := h.Service.ResolveDispute(r.Context(), caller, disputeID.String(), models.Resolution(body.Resolution), notes)
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, api.OrderResponse{Order: mapping.ToApiOrder(caller, view)})
}
