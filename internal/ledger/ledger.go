// Package ledger maintains the authoritative quantity and cost-basis state
// of a portfolio.
//
// Mutations are committed store-then-memory: the new state is computed, written
// to the LedgerStore if one is configured, and applied in memory only after the
// store accepted it. A failed store write leaves memory unchanged and returns an
// error wrapping models.ErrStoreFailure.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// RemovePolicy decides what Remove does with a ticker that is not held.
type RemovePolicy int

const (
	// RemoveMissingIgnore makes Remove of an absent ticker a silent no-op.
	RemoveMissingIgnore RemovePolicy = iota
	// RemoveMissingError makes Remove of an absent ticker return ErrNotFound.
	RemoveMissingError
)

// Ledger maps tickers to positions in insertion order.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]models.Position
	order     []string

	store  interfaces.LedgerStore
	policy RemovePolicy
	logger *common.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithStore mirrors every mutation to store before it is applied in memory
func WithStore(store interfaces.LedgerStore) Option {
	return func(l *Ledger) {
		l.store = store
	}
}

// WithRemovePolicy sets how Remove treats absent tickers
func WithRemovePolicy(policy RemovePolicy) Option {
	return func(l *Ledger) {
		l.policy = policy
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates an empty ledger. Without WithStore it is purely in-memory.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		positions: make(map[string]models.Position),
		logger:    common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory state with the store contents.
// Positions with non-positive quantity are dropped. Stores without a natural
// order are loaded in ascending ticker order.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	loaded, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %v", models.ErrStoreFailure, err)
	}
	valid := make([]models.Position, 0, len(loaded))
	for _, p := range loaded {
		p.Ticker = models.NormalizeTicker(p.Ticker)
		if p.Ticker == "" || p.Quantity <= 0 {
			l.logger.Warn().Str("ticker", p.Ticker).Int64("quantity", p.Quantity).Msg("Skipping invalid stored position")
			continue
		}
		valid = append(valid, p)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Ticker < valid[j].Ticker })

	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]models.Position, len(valid))
	l.order = l.order[:0]
	for _, p := range valid {
		if _, dup := l.positions[p.Ticker]; !dup {
			l.order = append(l.order, p.Ticker)
		}
		l.positions[p.Ticker] = p
	}

	l.logger.Info().Int("positions", len(l.order)).Msg("Ledger loaded")
	return nil
}

// Add records a purchase of quantity units at price. A new ticker is inserted
// at price; an existing one has its quantity increased and its average cost
// re-weighted.
func (l *Ledger) Add(ctx context.Context, ticker string, quantity int64, price float64) (models.Position, error) {
	ticker = models.NormalizeTicker(ticker)
	l.logger.Debug().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).Msg("Add")

	if ticker == "" {
		return models.Position{}, fmt.Errorf("%w: ticker is required", models.ErrInvalidInput)
	}
	if quantity <= 0 {
		return models.Position{}, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidInput, quantity)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.Position{}, fmt.Errorf("%w: price must be a positive number, got %v", models.ErrInvalidInput, price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := models.Position{Ticker: ticker, Quantity: quantity, AverageCost: price}
	old, exists := l.positions[ticker]
	if exists {
		if quantity > math.MaxInt64-old.Quantity {
			return models.Position{}, fmt.Errorf("%w: quantity %d would overflow holding of %d %s", models.ErrInvalidInput, quantity, old.Quantity, ticker)
		}
		next.Quantity = old.Quantity + quantity
		next.AverageCost = models.AverageCost(old.Quantity, old.AverageCost, quantity, price)
	}

	if err := l.persist(ctx, next); err != nil {
		return models.Position{}, err
	}

	if !exists {
		l.order = append(l.order, ticker)
		l.logger.Info().Str("ticker", ticker).Int64("quantity", next.Quantity).Float64("average_cost", next.AverageCost).Msg("Position added")
	} else {
		l.logger.Info().Str("ticker", ticker).Int64("quantity", next.Quantity).Float64("average_cost", next.AverageCost).Msg("Position increased")
	}
	l.positions[ticker] = next
	return next, nil
}

// Reduce records a sale of quantity units. The average cost is never changed
// by a sale. When the remaining quantity is zero or below the position is
// removed and removed is true.
func (l *Ledger) Reduce(ctx context.Context, ticker string, quantity int64) (position models.Position, removed bool, err error) {
	ticker = models.NormalizeTicker(ticker)
	l.logger.Debug().Str("ticker", ticker).Int64("quantity", quantity).Msg("Reduce")

	if ticker == "" {
		return models.Position{}, false, fmt.Errorf("%w: ticker is required", models.ErrInvalidInput)
	}
	if quantity <= 0 {
		return models.Position{}, false, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidInput, quantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	old, ok := l.positions[ticker]
	if !ok {
		return models.Position{}, false, fmt.Errorf("%w: %s", models.ErrNotFound, ticker)
	}

	remaining := old.Quantity - quantity
	if remaining <= 0 {
		if err := l.unpersist(ctx, ticker); err != nil {
			return models.Position{}, false, err
		}
		l.drop(ticker)
		l.logger.Info().Str("ticker", ticker).Int64("remaining", remaining).Msg("Position closed")
		return models.Position{Ticker: ticker}, true, nil
	}

	next := old
	next.Quantity = remaining
	if err := l.persist(ctx, next); err != nil {
		return models.Position{}, false, err
	}
	l.positions[ticker] = next
	l.logger.Info().Str("ticker", ticker).Int64("old", old.Quantity).Int64("new", remaining).Msg("Position reduced")
	return next, false, nil
}

// Remove deletes the position for ticker. An absent ticker is handled per
// the ledger's RemovePolicy.
func (l *Ledger) Remove(ctx context.Context, ticker string) error {
	ticker = models.NormalizeTicker(ticker)
	l.logger.Debug().Str("ticker", ticker).Msg("Remove")

	if ticker == "" {
		return fmt.Errorf("%w: ticker is required", models.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[ticker]; !ok {
		if l.policy == RemoveMissingError {
			return fmt.Errorf("%w: %s", models.ErrNotFound, ticker)
		}
		return nil
	}

	if err := l.unpersist(ctx, ticker); err != nil {
		return err
	}
	l.drop(ticker)
	l.logger.Info().Str("ticker", ticker).Msg("Position removed")
	return nil
}

// List returns a copy of all positions in insertion order.
func (l *Ledger) List() []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Position, 0, len(l.order))
	for _, t := range l.order {
		out = append(out, l.positions[t])
	}
	return out
}

// Get returns the position for ticker, if held.
func (l *Ledger) Get(ticker string) (models.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[models.NormalizeTicker(ticker)]
	return p, ok
}

// Len returns the number of positions held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// persist and unpersist run with l.mu held.
func (l *Ledger) persist(ctx context.Context, p models.Position) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Upsert(ctx, p); err != nil {
		l.logger.Error().Err(err).Str("ticker", p.Ticker).Msg("Store upsert failed")
		return fmt.Errorf("%w: upsert %s: %v", models.ErrStoreFailure, p.Ticker, err)
	}
	return nil
}

func (l *Ledger) unpersist(ctx context.Context, ticker string) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Delete(ctx, ticker); err != nil {
		l.logger.Error().Err(err).Str("ticker", ticker).Msg("Store delete failed")
		return fmt.Errorf("%w: delete %s: %v", models.ErrStoreFailure, ticker, err)
	}
	return nil
}

func (l *Ledger) drop(ticker string) {
	delete(l.positions, ticker)
	for i, t := range l.order {
		if t == ticker {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}
