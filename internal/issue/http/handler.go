package issuehttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/issue"
	"github.com/galley-erp/galley-erp/internal/observability"
	"github.com/galley-erp/galley-erp/internal/platform/httpx"
	"github.com/galley-erp/galley-erp/internal/shared"
)

// Handler exposes issue posting over HTTP.
type Handler struct {
	svc     *issue.Service
	metrics *observability.Metrics
}

// NewHandler constructs Handler.
func NewHandler(svc *issue.Service, metrics *observability.Metrics) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

// MountRoutes registers issue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.post)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type lineRequest struct {
	ItemID int64  `json:"item_id"`
	Qty    string `json:"qty"`
}

type postRequest struct {
	LocationID int64         `json:"location_id"`
	CostCentre string        `json:"cost_centre"`
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
	in := issue.PostInput{
		LocationID:     req.LocationID,
		CostCentre:     req.CostCentre,
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
		in.Lines = append(in.Lines, issue.LineInput{ItemID: line.ItemID, Qty: qty})
	}
	posted, err := h.svc.Post(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.CountPosting("issue")
	httpx.JSON(w, http.StatusCreated, posted)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := issue.ListFilter{CostCentre: r.URL.Query().Get("cost_centre")}
	filter.LocationID, _ = strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	filter.PeriodID, _ = strconv.ParseInt(r.URL.Query().Get("period_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	issues, err := h.svc.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, issues)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
		return
	}
	iss, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, iss)
}
