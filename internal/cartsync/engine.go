// Package cartsync keeps a client's cart in step with the commerce backend. Mutations
// apply to a local draft immediately and are pushed to the backend in the background
// of the call; Sync replaces the draft with the backend's snapshot when that is safe.
package cartsync

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/commerce"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

const (
	defaultCurrency  = "EUR"
	clearConcurrency = 4
)

// StateStore persists the cart blob of a client id.
type StateStore interface {
	Load(ctx context.Context, clientID string) (domain.CartState, error)
	Save(ctx context.Context, clientID string, state domain.CartState) error
}

type Options struct {
	Store  StateStore
	Logger *zap.Logger
	// Currency labels the total of an empty cart.
	Currency string
}

// Engine owns one client's cart. All methods are safe for concurrent use.
type Engine struct {
	clientID string
	client   commerce.Client
	store    StateStore
	logger   *zap.Logger
	currency string

	mu          sync.Mutex
	lines       []domain.CartLine
	confirmed   []domain.CartLine
	sessionID   string
	checkoutURL string
	pending     int
	completed   uint64
	syncing     int
	lastErr     error
	generation  uint64
	epoch       uint64
	seq         uint64
	version     uint64
	chains      map[string]*chain

	// sessionMu is held by the push that creates the remote session.
	sessionMu sync.Mutex

	persistMu    sync.Mutex
	savedVersion uint64

	bg sync.WaitGroup
}

// View is a point-in-time copy of the engine state.
type View struct {
	ClientID    string            `json:"clientId"`
	Lines       []domain.CartLine `json:"lines"`
	SessionID   string            `json:"remoteSessionId,omitempty"`
	CheckoutURL string            `json:"checkoutUrl,omitempty"`
	TotalItems  int               `json:"totalItems"`
	TotalPrice  domain.Money      `json:"totalPrice"`
	IsLoading   bool              `json:"isLoading"`
	IsSyncing   bool              `json:"isSyncing"`
	Error       string            `json:"error,omitempty"`
}

func NewEngine(clientID string, client commerce.Client, opts Options) *Engine {
	currency := strings.TrimSpace(opts.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	return &Engine{
		clientID: clientID,
		client:   client,
		store:    opts.Store,
		logger:   logging.OrNop(opts.Logger).Named("cartsync").With(zap.String("client_id", clientID)),
		currency: currency,
		chains:   make(map[string]*chain),
	}
}

// Restore replaces the engine state with a persisted cart. The checkout URL stays unset
// until the next Sync confirms the session.
func (e *Engine) Restore(state domain.CartState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = domain.CloneLines(state.Lines)
	e.confirmed = nil
	e.sessionID = state.RemoteSessionID
	e.checkoutURL = ""
	e.generation++
	e.version++
}

// AddItem merges line into the cart: an existing line for the variant grows by
// line.Quantity, otherwise line is appended.
func (e *Engine) AddItem(ctx context.Context, line domain.CartLine) error {
	if strings.TrimSpace(line.VariantID) == "" {
		return errors.Wrap(domain.ErrValidation, "variant id is required")
	}
	if line.Quantity <= 0 {
		return errors.Wrapf(domain.ErrInvalidQuantity, "add %s quantity %d", line.VariantID, line.Quantity)
	}

	e.mu.Lock()
	if len(e.lines) > 0 && e.lines[0].UnitPrice.CurrencyCode != line.UnitPrice.CurrencyCode {
		existing := e.lines[0].UnitPrice.CurrencyCode
		e.mu.Unlock()
		return errors.Wrapf(domain.ErrMixedCurrency, "cart holds %s, line is %s", existing, line.UnitPrice.CurrencyCode)
	}
	if idx := domain.IndexOfVariant(e.lines, line.VariantID); idx >= 0 {
		e.lines[idx].Quantity += line.Quantity
	} else {
		e.lines = append(e.lines, line.Clone())
	}
	t := e.mutatedLocked(line.VariantID)
	e.mu.Unlock()

	e.persist(ctx)
	return e.push(ctx, t)
}

// RemoveItem drops the line for variantID. Removing an absent variant is a no-op.
func (e *Engine) RemoveItem(ctx context.Context, variantID string) error {
	e.mu.Lock()
	idx := domain.IndexOfVariant(e.lines, variantID)
	if idx < 0 {
		e.mu.Unlock()
		return nil
	}
	e.lines = append(e.lines[:idx], e.lines[idx+1:]...)
	t := e.mutatedLocked(variantID)
	e.mu.Unlock()

	e.persist(ctx)
	return e.push(ctx, t)
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or less
// removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, variantID string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveItem(ctx, variantID)
	}

	e.mu.Lock()
	idx := domain.IndexOfVariant(e.lines, variantID)
	if idx < 0 {
		e.mu.Unlock()
		return errors.Wrapf(domain.ErrNotFound, "variant %s not in cart", variantID)
	}
	e.lines[idx].Quantity = quantity
	t := e.mutatedLocked(variantID)
	e.mu.Unlock()

	e.persist(ctx)
	return e.push(ctx, t)
}

// Clear empties the cart and forgets the remote session. The old session's lines are
// removed remotely on a best-effort basis; failures are only logged.
func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	oldSession := e.sessionID
	variants := variantIDs(e.lines, e.confirmed)
	e.resetLocked()
	e.mu.Unlock()

	e.persist(ctx)
	if oldSession == "" || len(variants) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(clearConcurrency)
	for _, v := range variants {
		g.Go(func() error {
			_, err := e.client.RemoveCartLine(ctx, oldSession, v)
			return errors.Wrapf(err, "remove %s", v)
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("clear remote cart", zap.String("session_id", oldSession), zap.Error(err))
	}
}

// CompleteCheckout tears the cart down after the backend confirmed a checkout. The
// session is consumed remotely, so nothing is sent to the backend.
func (e *Engine) CompleteCheckout(ctx context.Context) {
	e.mu.Lock()
	session := e.sessionID
	e.resetLocked()
	e.mu.Unlock()

	e.logger.Info("checkout completed", zap.String("session_id", session))
	e.persist(ctx)
}

// Sync replaces the local draft with the backend's snapshot of the current session.
// A snapshot that raced a local mutation or an in-flight push only refreshes the
// confirmed view. A session
// the backend no longer knows ends the cart.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	sessionID := e.sessionID
	if sessionID == "" {
		e.mu.Unlock()
		return nil
	}
	gen, epoch := e.generation, e.epoch
	inFlight, completed := e.pending, e.completed
	e.syncing++
	e.mu.Unlock()

	cart, err := e.client.GetCart(ctx, sessionID)

	e.mu.Lock()
	e.syncing--
	if epoch != e.epoch || e.sessionID != sessionID {
		e.mu.Unlock()
		e.logger.Debug("discarding sync for a replaced session", zap.String("session_id", sessionID))
		return nil
	}
	if err != nil {
		if errors.Is(err, commerce.ErrNotFound) {
			e.resetLocked()
			e.mu.Unlock()
			e.logger.Info("remote cart is gone, clearing", zap.String("session_id", sessionID))
			e.persist(ctx)
			return nil
		}
		marked := errors.Mark(errors.Wrap(err, "sync cart"), domain.ErrNetwork)
		e.lastErr = marked
		e.mu.Unlock()
		e.logger.Warn("sync failed", zap.String("session_id", sessionID), zap.Error(err))
		return marked
	}

	e.confirmed = domain.CloneLines(cart.Lines)
	e.checkoutURL = cart.CheckoutURL
	// Adopt the snapshot only when no push overlapped the fetch.
	if gen == e.generation && inFlight == 0 && e.pending == 0 && completed == e.completed {
		e.lines = domain.CloneLines(cart.Lines)
		e.lastErr = nil
	} else {
		e.logger.Debug("sync raced a local mutation, keeping draft")
	}
	e.version++
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}

// CheckoutURL returns the last confirmed checkout URL, or "" without a session.
func (e *Engine) CheckoutURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessionID == "" {
		return ""
	}
	return e.checkoutURL
}

func (e *Engine) TotalItems() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.TotalQuantity(e.lines)
}

func (e *Engine) TotalPrice() (domain.Money, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.SumLines(e.lines, e.currency)
}

func (e *Engine) Lines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneLines(e.lines)
}

// Err returns the error of the last failed remote call, cleared by the next success.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := View{
		ClientID:   e.clientID,
		Lines:      domain.CloneLines(e.lines),
		SessionID:  e.sessionID,
		TotalItems: domain.TotalQuantity(e.lines),
		IsLoading:  e.pending > 0,
		IsSyncing:  e.syncing > 0,
	}
	if e.sessionID != "" {
		v.CheckoutURL = e.checkoutURL
	}
	total, err := domain.SumLines(e.lines, e.currency)
	if err != nil {
		v.Error = err.Error()
	} else {
		v.TotalPrice = total
	}
	if e.lastErr != nil {
		v.Error = e.lastErr.Error()
	}
	return v
}

// Wait blocks until background pushes started by session recovery have finished.
func (e *Engine) Wait() {
	e.bg.Wait()
}

func (e *Engine) mutatedLocked(variantID string) *ticket {
	e.generation++
	e.version++
	return e.enqueueLocked(variantID)
}

func (e *Engine) resetLocked() {
	e.lines = nil
	e.confirmed = nil
	e.sessionID = ""
	e.checkoutURL = ""
	e.lastErr = nil
	e.chains = make(map[string]*chain)
	e.epoch++
	e.generation++
	e.version++
}

// persist saves the latest state. Snapshots are versioned so a slow save never
// overwrites a newer one.
func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	version := e.version
	state := domain.CartState{Lines: domain.CloneLines(e.lines), RemoteSessionID: e.sessionID}
	e.mu.Unlock()
	if version <= e.savedVersion {
		return
	}
	if err := e.store.Save(context.WithoutCancel(ctx), e.clientID, state); err != nil {
		e.logger.Warn("persist cart state", zap.Error(err))
		return
	}
	e.savedVersion = version
}

func quantityOf(lines []domain.CartLine, variantID string) int {
	if idx := domain.IndexOfVariant(lines, variantID); idx >= 0 {
		return lines[idx].Quantity
	}
	return 0
}

func variantIDs(sets ...[]domain.CartLine) []string {
	seen := map[string]bool{}
	var out []string
	for _, lines := range sets {
		for _, l := range lines {
			if !seen[l.VariantID] {
				seen[l.VariantID] = true
				out = append(out, l.VariantID)
			}
		}
	}
	return out
}
