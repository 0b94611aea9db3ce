package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/galley-erp/galley-erp/internal/delivery"
	"github.com/galley-erp/galley-erp/internal/issue"
	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/masterdata"
	"github.com/galley-erp/galley-erp/internal/ncr"
	"github.com/galley-erp/galley-erp/internal/period"
	"github.com/galley-erp/galley-erp/internal/pricebook"
	"github.com/galley-erp/galley-erp/internal/shared"
	"github.com/galley-erp/galley-erp/internal/transfer"
)

// RespondError maps domain errors to RFC7807 problem responses. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientStockError
	var notReady *period.NotReadyError
	var invalid *shared.ValidationError
	var validationErrs validator.ValidationErrors
	var pgErr *pgconn.PgError

	switch {
	case errors.As(err, &pgErr) && retryablePgCode(pgErr.Code):
		Problem(w, http.StatusServiceUnavailable, "Transient Database Error",
			"temporary conflict, retry the request")
	case errors.As(err, &invalid):
		Problem(w, http.StatusBadRequest, "Validation Failed", invalid.Msg)
	case errors.As(err, &insufficient):
		Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.As(err, &notReady):
		Problem(w, http.StatusConflict, "Locations Not Ready",
			fmt.Sprintf("locations pending reconciliation: %v", notReady.Pending))
	case errors.As(err, &validationErrs):
		Problem(w, http.StatusBadRequest, "Validation Failed", validationErrs.Error())

	case errors.Is(err, period.ErrNoOpenPeriod),
		errors.Is(err, period.ErrClosed):
		Problem(w, http.StatusUnprocessableEntity, "Period Not Postable", err.Error())
	case errors.Is(err, period.ErrInvalidTransition),
		errors.Is(err, ncr.ErrInvalidTransition),
		errors.Is(err, transfer.ErrInvalidTransition):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, period.ErrAnotherOpen),
		errors.Is(err, period.ErrOverlap),
		errors.Is(err, pricebook.ErrLocked),
		errors.Is(err, shared.ErrIdempotencyConflict),
		errors.Is(err, masterdata.ErrDuplicateCode):
		Problem(w, http.StatusConflict, "Conflict", err.Error())

	case errors.Is(err, period.ErrNotFound),
		errors.Is(err, pricebook.ErrNotFound),
		errors.Is(err, ncr.ErrNotFound),
		errors.Is(err, delivery.ErrNotFound),
		errors.Is(err, issue.ErrNotFound),
		errors.Is(err, transfer.ErrNotFound),
		errors.Is(err, masterdata.ErrNotFound),
		errors.Is(err, ledger.ErrEntryNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())

	case errors.Is(err, shared.ErrLocationForbidden),
		errors.Is(err, transfer.ErrSelfApproval):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())

	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidUnitCost),
		errors.Is(err, masterdata.ErrInvalidUoM),
		errors.Is(err, masterdata.ErrInvalidLocationType),
		errors.Is(err, masterdata.ErrCodeImmutable),
		errors.Is(err, transfer.ErrSameLocation),
		errors.Is(err, transfer.ErrReasonRequired):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())

	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// retryablePgCode reports whether the whole request can be retried from
// scratch: serialization failure, deadlock, lock timeout. Every posting is
// atomic, so nothing partial survives the aborted attempt.
func retryablePgCode(code string) bool {
	switch code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}
