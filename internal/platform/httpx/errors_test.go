package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/galley-erp/galley-erp/internal/ledger"
	"github.com/galley-erp/galley-erp/internal/period"
)

func respond(t *testing.T, err error) (int, ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)
	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestRespondErrorRetryableDatabaseFailures(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		status, body := respond(t, fmt.Errorf("post delivery: %w", &pgconn.PgError{Code: code}))
		require.Equal(t, http.StatusServiceUnavailable, status, "code %s", code)
		require.Equal(t, "Transient Database Error", body.Title)
	}

	// Constraint violations are not retryable and stay opaque.
	status, body := respond(t, &pgconn.PgError{Code: "23505"})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Internal Error", body.Title)
	require.Empty(t, body.Detail)
}

func TestRespondErrorDomainMappings(t *testing.T) {
	status, body := respond(t, &ledger.InsufficientStockError{
		ItemID: 10, Requested: decimal.RequireFromString("6"), Available: decimal.RequireFromString("5"),
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "Insufficient Stock", body.Title)

	status, _ = respond(t, period.ErrNoOpenPeriod)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = respond(t, errors.New("pool exhausted"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Empty(t, body.Detail)
}
