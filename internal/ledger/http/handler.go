package ledgerhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/platform/httpx"
	"github.com/galley-erp/galley-erp/internal/shared"
)

// Handler exposes read-only stock balances and the movement journal.
type Handler struct {
	repo *ledger.Repository
}

// NewHandler constructs Handler.
func NewHandler(repo *ledger.Repository) *Handler {
	return &Handler{repo: repo}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{locationID}", h.listEntries)
	r.Get("/{locationID}/{itemID}", h.getEntry)
	r.Get("/{locationID}/{itemID}/movements", h.movements)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	locationID, err := pathInt(r, "locationID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if !actor.CanAccessLocation(locationID) {
		httpx.RespondError(w, shared.ErrLocationForbidden)
		return
	}
	entries, err := h.repo.ListEntries(r.Context(), locationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	locationID, err := pathInt(r, "locationID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	itemID, err := pathInt(r, "itemID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if !actor.CanAccessLocation(locationID) {
		httpx.RespondError(w, shared.ErrLocationForbidden)
		return
	}
	entry, err := h.repo.GetEntry(r.Context(), locationID, itemID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	locationID, err := pathInt(r, "locationID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	itemID, err := pathInt(r, "itemID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if !actor.CanAccessLocation(locationID) {
		httpx.RespondError(w, shared.ErrLocationForbidden)
		return
	}
	filter := ledger.MovementFilter{LocationID: locationID, ItemID: itemID}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if from := r.URL.Query().Get("from"); from != "" {
		if filter.From, err = time.Parse("2006-01-02", from); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
			return
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if filter.To, err = time.Parse("2006-01-02", to); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
			return
		}
	}
	movements, err := h.repo.GetMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func pathInt(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
