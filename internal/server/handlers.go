package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/conversation"
	"github.com/stallwart/shopkeeper/internal/database"
	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/repository"
	"github.com/stallwart/shopkeeper/internal/shop"
	"github.com/stallwart/shopkeeper/internal/stats"
	"github.com/stallwart/shopkeeper/internal/template"
)

// HealthResponse represents the response for health endpoints
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.FromContext(ctx).Error("Failed to encode JSON response", "error", err)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, ErrorResponse{Error: message})
}

// respondDomainError maps engine errors onto HTTP statuses.
func respondDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrShopLimitReached),
		errors.Is(err, domain.ErrShopExpired):
		respondError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrShopCannotAfford):
		respondError(ctx, w, http.StatusConflict, err.Error())
	default:
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}

func handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

func handleReadyz(dbPool database.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			logger.FromContext(r.Context()).Error("Readiness check failed", "error", err)
			respondJSON(r.Context(), w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "unavailable",
				Message: "database connection failed",
			})
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

func handleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusOK, map[string]string{"version": version})
	}
}

// shopView is the wire projection of a shop.
type shopView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Kind        string          `json:"kind"`
	State       string          `json:"state"`
	Open        bool            `json:"open"`
	Location    domain.Location `json:"location"`
	Owner       string          `json:"owner,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	AutoRenew   bool            `json:"auto_renew,omitempty"`
	Items       []itemView      `json:"items"`
}

type itemView struct {
	ID        string           `json:"id"`
	Stack     domain.ItemStack `json:"stack"`
	BuyPrice  float64          `json:"buy_price"`
	SellPrice *float64         `json:"sell_price,omitempty"`
	Currency  string           `json:"currency"`
	Stock     int              `json:"stock"`
	Unlimited bool             `json:"unlimited"`
}

func viewOf(s *domain.Shop) shopView {
	v := shopView{
		ID:          s.ID.String(),
		Name:        s.Name,
		Description: s.Description,
		Kind:        string(s.Kind),
		State:       string(s.State),
		Open:        s.Open,
		Location:    s.Location,
		Items:       make([]itemView, 0, s.ItemCount()),
	}
	if s.Kind == domain.KindPlayer {
		v.Owner = s.Owner.String()
		expires := s.ExpirationTime
		v.ExpiresAt = &expires
		v.AutoRenew = s.AutoRenew
	}
	for _, item := range s.Items() {
		v.Items = append(v.Items, itemView{
			ID:        item.ID.String(),
			Stack:     item.Stack(),
			BuyPrice:  item.BuyPrice,
			SellPrice: item.SellPrice,
			Currency:  item.Currency,
			Stock:     item.Stock,
			Unlimited: item.Unlimited(),
		})
	}
	return v
}

func handleListShops(mgr *shop.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shops, err := mgr.ListShops(r.Context())
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		views := make([]shopView, 0, len(shops))
		for _, s := range shops {
			views = append(views, viewOf(s))
		}
		respondJSON(r.Context(), w, http.StatusOK, views)
	}
}

func handleGetShop(mgr *shop.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		s, err := mgr.GetShop(r.Context(), shopID)
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, viewOf(s))
	}
}

// CreateShopRequest is the body for POST /shops.
type CreateShopRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Location    domain.Location `json:"location"`
	Kind        string          `json:"kind"`
	Owner       string          `json:"owner,omitempty"`
}

func handleCreateShop(mgr *shop.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateShopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid request body")
			return
		}
		var (
			s   *domain.Shop
			err error
		)
		switch req.Kind {
		case string(domain.KindAdmin):
			s, err = mgr.CreateAdminShop(r.Context(), req.Name, req.Description, req.Location)
		case string(domain.KindPlayer):
			owner, perr := uuid.Parse(req.Owner)
			if perr != nil {
				respondError(r.Context(), w, http.StatusBadRequest, "invalid owner id")
				return
			}
			s, err = mgr.CreatePlayerShop(r.Context(), req.Name, req.Description, req.Location, owner)
		default:
			respondError(r.Context(), w, http.StatusBadRequest, "kind must be admin or player")
			return
		}
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusCreated, viewOf(s))
	}
}

func handleDeleteShop(mgr *shop.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		if err := mgr.DeleteShop(r.Context(), shopID); err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRenewShop(mgr *shop.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		if err := mgr.RenewShop(r.Context(), shopID); err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AddItemRequest is the body for POST /shops/{shopID}/items.
type AddItemRequest struct {
	Stack    domain.ItemStack `json:"stack"`
	BuyPrice float64          `json:"buy_price"`
	Currency string           `json:"currency"`
	Stock    int              `json:"stock"`
}

func handleAddItem(mgr *shop.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		var req AddItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid request body")
			return
		}
		item, err := mgr.AddItem(r.Context(), shopID, req.Stack, req.BuyPrice, req.Currency, req.Stock)
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusCreated, itemView{
			ID:        item.ID.String(),
			Stack:     item.Stack(),
			BuyPrice:  item.BuyPrice,
			SellPrice: item.SellPrice,
			Currency:  item.Currency,
			Stock:     item.Stock,
			Unlimited: item.Unlimited(),
		})
	}
}

func handleRemoveItem(mgr *shop.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		itemID, err := pathUUID(r, "itemID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid item id")
			return
		}
		if err := mgr.RemoveItem(r.Context(), shopID, itemID); err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// TradeRequest is the body for buy and sell calls.
type TradeRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	PlayerID string `json:"player_id"`
}

// TradeResponse echoes the recorded transaction.
type TradeResponse struct {
	TransactionID string  `json:"transaction_id"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	Tax           float64 `json:"tax"`
	Total         float64 `json:"total"`
	Direction     string  `json:"direction"`
}

func handleTrade(mgr *shop.Manager, sell bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		var req TradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid request body")
			return
		}
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid item id")
			return
		}
		playerID, err := uuid.Parse(req.PlayerID)
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid player id")
			return
		}

		var tx *domain.Transaction
		if sell {
			tx, err = mgr.Sell(r.Context(), shopID, itemID, req.Quantity, playerID)
		} else {
			tx, err = mgr.Buy(r.Context(), shopID, itemID, req.Quantity, playerID)
		}
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, TradeResponse{
			TransactionID: tx.ID.String(),
			Quantity:      tx.Quantity,
			UnitPrice:     tx.UnitPrice,
			Tax:           tx.Tax,
			Total:         tx.Amount(),
			Direction:     string(tx.Direction),
		})
	}
}

func handleBuy(mgr *shop.Manager) http.HandlerFunc  { return handleTrade(mgr, false) }
func handleSell(mgr *shop.Manager) http.HandlerFunc { return handleTrade(mgr, true) }

func handleShopTransactions(transactions repository.Transactions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		txs, err := transactions.ListByShop(r.Context(), shopID, queryLimit(r, 50))
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, txs)
	}
}

func handleListTemplates(templates *template.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tpls, err := templates.List(r.Context())
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, tpls)
	}
}

// ApplyTemplateRequest is the body for template application.
type ApplyTemplateRequest struct {
	ShopID string `json:"shop_id"`
}

func handleApplyTemplate(templates *template.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, err := pathUUID(r, "templateID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid template id")
			return
		}
		var req ApplyTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid request body")
			return
		}
		shopID, err := uuid.Parse(req.ShopID)
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		if err := templates.Apply(r.Context(), templateID, shopID); err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// InstantiateTemplateRequest is the body for creating a new shop from a
// template. Owner is required for player-shop templates.
type InstantiateTemplateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Location    domain.Location `json:"location"`
	Owner       string          `json:"owner,omitempty"`
}

func handleInstantiateTemplate(templates *template.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, err := pathUUID(r, "templateID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid template id")
			return
		}
		var req InstantiateTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid request body")
			return
		}
		owner := uuid.Nil
		if req.Owner != "" {
			owner, err = uuid.Parse(req.Owner)
			if err != nil {
				respondError(r.Context(), w, http.StatusBadRequest, "invalid owner id")
				return
			}
		}
		s, err := templates.Instantiate(r.Context(), templateID, req.Name, req.Description, req.Location, owner)
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusCreated, viewOf(s))
	}
}

// ConversationRequest is one free-text message from a user.
type ConversationRequest struct {
	UserID string `json:"user_id"`
	Input  string `json:"input"`
}

// ConversationResponse reports whether the pending action completed.
type ConversationResponse struct {
	Done    bool   `json:"done"`
	Message string `json:"message"`
}

func handleConversation(tracker *conversation.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid request body")
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid user id")
			return
		}
		res, err := tracker.Submit(r.Context(), userID, req.Input)
		if err != nil {
			logger.FromContext(r.Context()).Error("Conversation dispatch failed", "error", err)
		}
		respondJSON(r.Context(), w, http.StatusOK, ConversationResponse{Done: res.Done, Message: res.Message})
	}
}

func handleTopShops(statsService stats.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stat := r.URL.Query().Get("stat")
		if stat == "" {
			stat = domain.StatTotalSalesVolume
		}
		limit := queryLimit(r, 10)
		entries, err := statsService.TopShops(r.Context(), stat, limit)
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, entries)
	}
}

func handleShopSummary(statsService stats.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathUUID(r, "shopID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid shop id")
			return
		}
		sum, err := statsService.ShopSummary(r.Context(), shopID, queryLimit(r, 100))
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, sum)
	}
}

func handlePlayerSummary(statsService stats.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := pathUUID(r, "playerID")
		if err != nil {
			respondError(r.Context(), w, http.StatusBadRequest, "invalid player id")
			return
		}
		sum, err := statsService.PlayerSummary(r.Context(), playerID, queryLimit(r, 100))
		if err != nil {
			respondDomainError(r.Context(), w, err)
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, sum)
	}
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return fallback
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}
