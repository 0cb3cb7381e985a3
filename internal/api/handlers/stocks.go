package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/clients/nse"
)

// QuoteClient is the stock market data surface.
type QuoteClient interface {
	GetQuote(ctx context.Context, symbol string) (*nse.Quote, error)
	GetMarketStatus(ctx context.Context) ([]nse.MarketState, error)
}

// StocksHandler handles market data endpoints.
type StocksHandler struct {
	client QuoteClient
	log    zerolog.Logger
}

// NewStocksHandler creates a stocks handler.
func NewStocksHandler(client QuoteClient, log zerolog.Logger) *StocksHandler {
	return &StocksHandler{client: client, log: log}
}

// Quote handles GET /api/stocks/quote?symbol=.
func (h *StocksHandler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		middleware.WriteError(w, http.StatusBadRequest, "A symbol query parameter is required")
		return
	}

	quote, err := h.client.GetQuote(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Quote lookup failed")
		middleware.WriteError(w, http.StatusBadGateway, "Quote lookup failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, quote)
}

// Market handles GET /api/stocks/market.
func (h *StocksHandler) Market(w http.ResponseWriter, r *http.Request) {
	states, err := h.client.GetMarketStatus(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Market status lookup failed")
		middleware.WriteError(w, http.StatusBadGateway, "Market status lookup failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"marketState": states,
	})
}
