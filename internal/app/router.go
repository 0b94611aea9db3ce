package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	deliveryhttp "github.com/galley-erp/galley-erp/internal/delivery/http"
	issuehttp "github.com/galley-erp/galley-erp/internal/issue/http"
	ledgerhttp "github.com/galley-erp/galley-erp/internal/ledger/http"
	masterdatahttp "github.com/galley-erp/galley-erp/internal/masterdata/http"
	ncrhttp "github.com/galley-erp/galley-erp/internal/ncr/http"
	"github.com/galley-erp/galley-erp/internal/observability"
	periodhttp "github.com/galley-erp/galley-erp/internal/period/http"
	pricebookhttp "github.com/galley-erp/galley-erp/internal/pricebook/http"
	transferhttp "github.com/galley-erp/galley-erp/internal/transfer/http"
	"github.com/galley-erp/galley-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	PeriodHandler     *periodhttp.Handler
	PriceBookHandler  *pricebookhttp.Handler
	DeliveryHandler   *deliveryhttp.Handler
	IssueHandler      *issuehttp.Handler
	TransferHandler   *transferhttp.Handler
	NCRHandler        *ncrhttp.Handler
	MasterDataHandler *masterdatahttp.Handler
	StockHandler      *ledgerhttp.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Galley defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/periods", func(r chi.Router) {
		params.PeriodHandler.MountRoutes(r)
		params.PriceBookHandler.MountRoutes(r)
	})
	r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
	r.Route("/issues", params.IssueHandler.MountRoutes)
	r.Route("/transfers", params.TransferHandler.MountRoutes)
	r.Route("/ncrs", params.NCRHandler.MountRoutes)
	r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	r.Route("/stock", params.StockHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
