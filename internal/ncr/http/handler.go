package ncrhttp

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/ncr"
	"github.com/galley-erp/galley-erp/internal/platform/httpx"
	"github.com/galley-erp/galley-erp/internal/shared"
)

// Handler exposes non-conformance reports over HTTP.
type Handler struct {
	svc *ncr.Service
}

// NewHandler constructs Handler.
func NewHandler(svc *ncr.Service) *Handler {
	return &Handler{svc: svc}
}

// MountRoutes registers NCR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/status", h.transition)
}

type createRequest struct {
	LocationID int64  `json:"location_id"`
	SupplierID int64  `json:"supplier_id"`
	Value      string `json:"value"`
	Reason     string `json:"reason"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	value := decimal.Zero
	if req.Value != "" {
		var err error
		value, err = decimal.NewFromString(req.Value)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Value", "value must be a decimal string")
			return
		}
	}
	actor := shared.ActorFromContext(r.Context())
	report, err := h.svc.CreateManual(r.Context(), ncr.CreateManualInput{
		LocationID: req.LocationID,
		SupplierID: req.SupplierID,
		Value:      value,
		Reason:     req.Reason,
		ActorID:    actor.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, report)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	report, err := h.svc.Transition(r.Context(), id, ncr.Status(req.Status), actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ncr.ListFilter{
		Status: ncr.Status(r.URL.Query().Get("status")),
		Type:   ncr.Type(r.URL.Query().Get("type")),
	}
	filter.LocationID, _ = strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	reports, err := h.svc.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	report, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
