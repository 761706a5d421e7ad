package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/dataaccess"
	"github.com/aristath/sentinel-dashboard/internal/domain"
)

// MarketHandlers serves the public market, strategy and model routes.
type MarketHandlers struct {
	data *dataaccess.Facade
	log  zerolog.Logger
}

// NewMarketHandlers creates market handlers.
func NewMarketHandlers(data *dataaccess.Facade, log zerolog.Logger) *MarketHandlers {
	return &MarketHandlers{
		data: data,
		log:  log.With().Str("handler", "market").Logger(),
	}
}

// HandleDashboard handles GET /api/dashboard
func (h *MarketHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.data.Dashboard(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, bundle)
}

// HandleStocks handles GET /api/stocks
func (h *MarketHandlers) HandleStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.data.Stocks(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, domain.StockList{Stocks: stocks})
}

// HandleStock handles GET /api/stocks/{ticker}?period=&interval=
func (h *MarketHandlers) HandleStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	detail, err := h.data.Stock(r.Context(), chi.URLParam(r, "ticker"), q.Get("period"), q.Get("interval"))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, detail)
}

// HandleStrategies handles GET /api/strategies
func (h *MarketHandlers) HandleStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := h.data.Strategies(r.Context())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, domain.StrategyList{Strategies: strategies})
}

// HandleCreateStrategy handles POST /api/strategies
func (h *MarketHandlers) HandleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var s domain.Strategy
	if err := decodeJSON(r, &s); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	created, err := h.data.CreateStrategy(r.Context(), s)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, created)
}

// HandleUpdateStrategy handles PUT /api/strategies/{id}
func (h *MarketHandlers) HandleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	var s domain.Strategy
	if err := decodeJSON(r, &s); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	updated, err := h.data.UpdateStrategy(r.Context(), chi.URLParam(r, "id"), s)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, updated)
}

// HandlePrediction handles GET /api/prediction/{ticker}?strategy=&...
// Query parameters other than strategy are forwarded as model parameters.
func (h *MarketHandlers) HandlePrediction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strategy := q.Get("strategy")

	params := url.Values{}
	for k, v := range q {
		if k != "strategy" {
			params[k] = v
		}
	}

	prediction, err := h.data.Prediction(r.Context(), chi.URLParam(r, "ticker"), strategy, params)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, prediction)
}

// HandleBacktest handles POST /api/backtest
func (h *MarketHandlers) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	var req domain.BacktestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	result, err := h.data.RunBacktest(r.Context(), req)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, result)
}
