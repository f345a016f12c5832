package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/service"
)

// MarketService defines what the market handler needs from the service
// layer.
type MarketService interface {
	View(ctx context.Context, id string) (service.MarketView, error)
	Refresh(ctx context.Context, id string) (domain.Contract, error)
}

// HomeService builds the landing page.
type HomeService interface {
	Home(ctx context.Context) (domain.HomeFeed, error)
}

// FeedService serves recommendations.
type FeedService interface {
	Recommended(ctx context.Context, userID string, n int, excluded []string) ([]domain.Contract, error)
}

// MarketHandler serves contract read endpoints.
type MarketHandler struct {
	markets MarketService
	home    HomeService
	feed    FeedService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, home HomeService, feed FeedService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		home:    home,
		feed:    feed,
		logger:  logHandler(logger, "market"),
	}
}

// GetMarket returns a contract with its answers ordered and attributed.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	view, err := h.markets.View(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RefreshMarket re-reads a contract from the platform, replacing the stored
// and cached copies.
// POST /api/markets/{id}/refresh
func (h *MarketHandler) RefreshMarket(w http.ResponseWriter, r *http.Request) {
	c, err := h.markets.Refresh(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "refresh market", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetHome returns the landing page payload.
// GET /api/home
func (h *MarketHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	feed, err := h.home.Home(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "get home", err)
		return
	}
	if feed.RevalidateAfter > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(feed.RevalidateAfter))
	}
	writeJSON(w, http.StatusOK, feed)
}

// GetRecommended returns contracts recommended for a user.
// GET /api/feed/recommended?userId=u&n=20&exclude=c1&exclude=c2
func (h *MarketHandler) GetRecommended(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contracts, err := h.feed.Recommended(r.Context(), q.Get("userId"), queryInt(r, "n", 0), splitList(q["exclude"]))
	if err != nil {
		writeDomainError(w, r, h.logger, "get recommended", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": contracts})
}
