package pricebookhttp

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/galley-erp/galley-erp/internal/platform/httpx"
	"github.com/galley-erp/galley-erp/internal/pricebook"
	"github.com/galley-erp/galley-erp/internal/shared"
)

// Handler exposes the price book over HTTP.
type Handler struct {
	svc *pricebook.Service
}

// NewHandler constructs Handler.
func NewHandler(svc *pricebook.Service) *Handler {
	return &Handler{svc: svc}
}

// MountRoutes registers price book routes under a period scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Put("/{id}/prices", h.set)
	r.Get("/{id}/prices", h.listByPeriod)
	r.Get("/{id}/prices/{itemID}", h.get)
}

type setRequest struct {
	ItemID   int64  `json:"item_id"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	periodID, err := pathInt(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req setRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Price", "price must be a decimal string")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	point, err := h.svc.Set(r.Context(), pricebook.SetInput{
		ItemID:   req.ItemID,
		PeriodID: periodID,
		Price:    price,
		Currency: req.Currency,
		ActorID:  actor.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, point)
}

func (h *Handler) listByPeriod(w http.ResponseWriter, r *http.Request) {
	periodID, err := pathInt(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	points, err := h.svc.ListByPeriod(r.Context(), periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	periodID, err := pathInt(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	itemID, err := pathInt(r, "itemID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	point, err := h.svc.Get(r.Context(), itemID, periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, point)
}

func pathInt(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
