// Package conversation collects free-text follow-up input one message at a
// time. Each user has at most one pending action; input arriving from any
// goroutine is dispatched through the shop manager so entity state is only
// ever touched from its run loop.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/shop"
)

// Kind identifies the pending operation a user's next message completes.
type Kind string

const (
	KindCreateShop     Kind = "create_shop"
	KindRenameShop     Kind = "rename_shop"
	KindSetDescription Kind = "set_description"
	KindSetBuyPrice    Kind = "set_buy_price"
	KindSetSellPrice   Kind = "set_sell_price"
	KindSetStock       Kind = "set_stock"
	KindSetTaxRate     Kind = "set_tax_rate"
)

const cancelKeyword = "cancel"

// Pending is the single in-flight action tracked for a user.
type Pending struct {
	Kind   Kind
	ShopID uuid.UUID
	ItemID uuid.UUID
	// Location carries the placement for create-shop, captured when the
	// action was started.
	Location domain.Location
	Owner    uuid.UUID
	Admin    bool
}

// Result reports how one message was handled.
type Result struct {
	// Done is true when the pending action completed or was abandoned;
	// false means the action is still open for a retry.
	Done    bool
	Message string
}

// Tracker is the per-user pending action state machine.
type Tracker struct {
	mgr *shop.Manager

	mu      sync.Mutex
	pending map[uuid.UUID]Pending
}

func NewTracker(mgr *shop.Manager) *Tracker {
	return &Tracker{
		mgr:     mgr,
		pending: make(map[uuid.UUID]Pending),
	}
}

// Begin parks a new pending action for the user, replacing any existing
// one. There is no timeout: the action stays until completed or cancelled.
func (t *Tracker) Begin(userID uuid.UUID, p Pending) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[userID] = p
}

// Pending returns the user's current pending action, if any.
func (t *Tracker) Pending(userID uuid.UUID) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[userID]
	return p, ok
}

func (t *Tracker) clear(userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, userID)
}

// Submit feeds one free-text message into the user's pending action.
//
// "cancel" (any letter case) always clears the slot. For a recognized
// kind, invalid input keeps the action open so the user can retry;
// an unrecognized kind abandons the action.
func (t *Tracker) Submit(ctx context.Context, userID uuid.UUID, input string) (Result, error) {
	p, ok := t.Pending(userID)
	if !ok {
		return Result{Done: true, Message: "Nothing is waiting for your input."}, nil
	}

	trimmed := strings.TrimSpace(input)
	if strings.EqualFold(trimmed, cancelKeyword) {
		t.clear(userID)
		return Result{Done: true, Message: "Cancelled."}, nil
	}

	res, err := t.dispatch(ctx, userID, p, trimmed)
	if err != nil {
		// Persistence or context errors are not the user's fault; keep
		// the action so the input can be resubmitted.
		return Result{Message: "Something went wrong, please try again or type cancel."}, err
	}
	if res.Done {
		t.clear(userID)
	}
	return res, nil
}

func (t *Tracker) dispatch(ctx context.Context, userID uuid.UUID, p Pending, input string) (Result, error) {
	switch p.Kind {
	case KindCreateShop:
		return t.handleCreateShop(ctx, p, input)
	case KindRenameShop:
		return t.handleRename(ctx, p, input)
	case KindSetDescription:
		return t.handleDescription(ctx, p, input)
	case KindSetBuyPrice:
		return t.handleBuyPrice(ctx, p, input)
	case KindSetSellPrice:
		return t.handleSellPrice(ctx, p, input)
	case KindSetStock:
		return t.handleStock(ctx, p, input)
	case KindSetTaxRate:
		return t.handleTaxRate(ctx, p, input)
	default:
		// Unknown kinds are abandoned rather than retried: there is no
		// handler that could ever accept the input.
		logger.FromContext(ctx).Warn("Discarding pending action of unknown kind",
			"kind", p.Kind, "user_id", userID)
		return Result{Done: true, Message: fmt.Sprintf("Unrecognized action %q, discarded.", p.Kind)}, nil
	}
}

func (t *Tracker) handleCreateShop(ctx context.Context, p Pending, input string) (Result, error) {
	if len(input) < domain.NameMinLength || len(input) > domain.NameMaxLength {
		return Result{Message: fmt.Sprintf("Shop names must be %d to %d characters, try again or type cancel.",
			domain.NameMinLength, domain.NameMaxLength)}, nil
	}
	var err error
	if p.Admin {
		_, err = t.mgr.CreateAdminShop(ctx, input, "", p.Location)
	} else {
		_, err = t.mgr.CreatePlayerShop(ctx, input, "", p.Location, p.Owner)
	}
	switch {
	case err == nil:
		return Result{Done: true, Message: fmt.Sprintf("Shop %q created.", input)}, nil
	case isUserError(err):
		return Result{Message: userMessage(err)}, nil
	default:
		return Result{}, err
	}
}

func (t *Tracker) handleRename(ctx context.Context, p Pending, input string) (Result, error) {
	err := t.mgr.Mutate(ctx, p.ShopID, func(s *domain.Shop) error {
		return s.SetName(input)
	})
	return mutateResult(err, fmt.Sprintf("Shop renamed to %q.", input))
}

func (t *Tracker) handleDescription(ctx context.Context, p Pending, input string) (Result, error) {
	err := t.mgr.Mutate(ctx, p.ShopID, func(s *domain.Shop) error {
		return s.SetDescription(input)
	})
	return mutateResult(err, "Description updated.")
}

func (t *Tracker) handleBuyPrice(ctx context.Context, p Pending, input string) (Result, error) {
	price, perr := parsePrice(input)
	if perr != nil {
		return Result{Message: perr.Error()}, nil
	}
	err := t.mgr.Mutate(ctx, p.ShopID, func(s *domain.Shop) error {
		item, ierr := s.Item(p.ItemID)
		if ierr != nil {
			return ierr
		}
		return item.SetBuyPrice(price)
	})
	return mutateResult(err, fmt.Sprintf("Buy price set to %.2f.", price))
}

func (t *Tracker) handleSellPrice(ctx context.Context, p Pending, input string) (Result, error) {
	price, perr := parsePrice(input)
	if perr != nil {
		return Result{Message: perr.Error()}, nil
	}
	err := t.mgr.Mutate(ctx, p.ShopID, func(s *domain.Shop) error {
		item, ierr := s.Item(p.ItemID)
		if ierr != nil {
			return ierr
		}
		return item.SetSellPrice(price)
	})
	return mutateResult(err, fmt.Sprintf("Sell price set to %.2f.", price))
}

func (t *Tracker) handleStock(ctx context.Context, p Pending, input string) (Result, error) {
	target, perr := parseStock(input)
	if perr != nil {
		return Result{Message: perr.Error()}, nil
	}
	err := t.mgr.Mutate(ctx, p.ShopID, func(s *domain.Shop) error {
		item, ierr := s.Item(p.ItemID)
		if ierr != nil {
			return ierr
		}
		return item.SetStock(target)
	})
	return mutateResult(err, fmt.Sprintf("Stock set to %s.", input))
}

func (t *Tracker) handleTaxRate(ctx context.Context, p Pending, input string) (Result, error) {
	rate, rerr := strconv.ParseFloat(input, 64)
	if rerr != nil {
		return Result{Message: fmt.Sprintf("%q is not a number, try again or type cancel.", input)}, nil
	}
	err := t.mgr.Mutate(ctx, p.ShopID, func(s *domain.Shop) error {
		return s.SetTaxRate(&rate)
	})
	return mutateResult(err, fmt.Sprintf("Tax rate set to %.2f%%.", rate*100))
}

// mutateResult maps a mutation outcome to the retry-vs-done rule: user
// errors keep the conversation open, success or system failure ends it.
func mutateResult(err error, success string) (Result, error) {
	switch {
	case err == nil:
		return Result{Done: true, Message: success}, nil
	case isUserError(err):
		return Result{Message: userMessage(err)}, nil
	default:
		return Result{}, err
	}
}

func isUserError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrShopLimitReached) ||
		errors.Is(err, domain.ErrNotFound)
}

func userMessage(err error) string {
	return fmt.Sprintf("%s Try again or type cancel.", capitalize(err.Error()))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parsePrice(input string) (float64, error) {
	price, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number, try again or type cancel", input)
	}
	if price < domain.PriceMin || price > domain.PriceMax {
		return 0, fmt.Errorf("prices must be between %g and %g, try again or type cancel",
			domain.PriceMin, domain.PriceMax)
	}
	return price, nil
}

func parseStock(input string) (int, error) {
	if strings.EqualFold(input, "unlimited") {
		return domain.StockUnlimited, nil
	}
	stock, err := strconv.Atoi(input)
	if err != nil || stock < 0 {
		return 0, fmt.Errorf("stock must be a non-negative whole number or %q, try again or type cancel", "unlimited")
	}
	return stock, nil
}
