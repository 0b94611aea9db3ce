package deliveryhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/delivery"
	"github.com/galley-erp/galley-erp/internal/observability"
	"github.com/galley-erp/galley-erp/internal/platform/httpx"
	"github.com/galley-erp/galley-erp/internal/shared"
)

// Handler exposes delivery posting over HTTP.
type Handler struct {
	svc     *delivery.Service
	metrics *observability.Metrics
}

// NewHandler constructs Handler.
func NewHandler(svc *delivery.Service, metrics *observability.Metrics) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.post)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type lineRequest struct {
	ItemID    int64  `json:"item_id"`
	Qty       string `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type postRequest struct {
	LocationID int64         `json:"location_id"`
	SupplierID int64         `json:"supplier_id"`
	Reference  string        `json:"reference"`
	Note       string        `json:"note"`
	Date       string        `json:"date"`
	Lines      []lineRequest `json:"lines"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	in := delivery.PostInput{
		LocationID:     req.LocationID,
		SupplierID:     req.SupplierID,
		Reference:      req.Reference,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ActorID:        actor.UserID,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
			return
		}
		in.Date = date
	}
	for _, line := range req.Lines {
		qty, err := decimal.NewFromString(line.Qty)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Quantity", "qty must be a decimal string")
			return
		}
		unitPrice, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Price", "unit_price must be a decimal string")
			return
		}
		in.Lines = append(in.Lines, delivery.LineInput{ItemID: line.ItemID, Qty: qty, UnitPrice: unitPrice})
	}
	posted, err := h.svc.Post(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.CountPosting("delivery")
	httpx.JSON(w, http.StatusCreated, posted)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := delivery.ListFilter{}
	filter.LocationID, _ = strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	filter.SupplierID, _ = strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filter.PeriodID, _ = strconv.ParseInt(r.URL.Query().Get("period_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	deliveries, err := h.svc.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deliveries)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}
