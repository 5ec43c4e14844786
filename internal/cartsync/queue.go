package cartsync

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"storefront/internal/commerce"
	"storefront/internal/domain"
)

// A ticket is one queued remote push for a variant. Tickets of the same variant form a
// FIFO chain: each waits for its predecessor's done channel. When a ticket's turn comes
// it pushes the variant's current local quantity, so a ticket that has been superseded
// by a newer one for the same variant has nothing to do.
type ticket struct {
	variantID string
	seq       uint64
	epoch     uint64
	prev      <-chan struct{}
	done      chan struct{}
}

type chain struct {
	tail   <-chan struct{}
	latest uint64
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (e *Engine) enqueueLocked(variantID string) *ticket {
	c, ok := e.chains[variantID]
	if !ok {
		c = &chain{tail: closedCh}
		e.chains[variantID] = c
	}
	e.seq++
	t := &ticket{
		variantID: variantID,
		seq:       e.seq,
		epoch:     e.epoch,
		prev:      c.tail,
		done:      make(chan struct{}),
	}
	c.tail = t.done
	c.latest = t.seq
	e.pending++
	return t
}

func (e *Engine) supersededLocked(t *ticket) bool {
	if t.epoch != e.epoch {
		return true
	}
	c, ok := e.chains[t.variantID]
	return !ok || c.latest != t.seq
}

// push waits for the ticket's turn and mirrors the local quantity to the backend. The
// remote call is not tied to the caller's cancellation.
func (e *Engine) push(ctx context.Context, t *ticket) error {
	ctx = context.WithoutCancel(ctx)
	<-t.prev
	defer e.finish(t)

	for attempt := 0; ; attempt++ {
		e.mu.Lock()
		if e.supersededLocked(t) {
			e.mu.Unlock()
			return nil
		}
		e.mu.Unlock()

		used, err := e.apply(ctx, t)
		if err == nil {
			e.persist(ctx)
			return nil
		}
		if attempt == 0 && used != "" && errors.Is(err, commerce.ErrNotFound) {
			e.dropSession(ctx, t, used)
			continue
		}
		return e.fail(t, err)
	}
}

// apply sends the current quantity of t's variant to the backend and records the
// returned cart. Without a session it serializes on sessionMu so that concurrent first
// pushes share one new remote cart. It returns the session id the call targeted.
func (e *Engine) apply(ctx context.Context, t *ticket) (string, error) {
	var (
		sessionID string
		desired   int
		locked    bool
	)
	for {
		e.mu.Lock()
		if t.epoch != e.epoch {
			e.mu.Unlock()
			return "", nil
		}
		sessionID = e.sessionID
		desired = quantityOf(e.lines, t.variantID)
		e.mu.Unlock()

		if sessionID != "" || desired <= 0 || locked {
			break
		}
		e.sessionMu.Lock()
		defer e.sessionMu.Unlock()
		locked = true
	}

	var (
		cart *commerce.Cart
		err  error
	)
	switch {
	case desired > 0:
		cart, err = e.client.CreateOrUpdateCartLine(ctx, sessionID, t.variantID, desired)
	case sessionID != "":
		cart, err = e.client.RemoveCartLine(ctx, sessionID, t.variantID)
	default:
		return "", nil
	}
	if err != nil {
		return sessionID, err
	}
	e.record(t, cart)
	return sessionID, nil
}

func (e *Engine) record(t *ticket, cart *commerce.Cart) {
	if cart == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.epoch != e.epoch {
		e.logger.Debug("discarding response for a cleared cart", zap.String("session_id", cart.SessionID))
		return
	}
	e.sessionID = cart.SessionID
	e.checkoutURL = cart.CheckoutURL
	e.confirmed = domain.CloneLines(cart.Lines)
	e.lastErr = nil
	e.version++
}

func (e *Engine) fail(t *ticket, err error) error {
	marked := errors.Mark(errors.Wrapf(err, "push variant %s", t.variantID), domain.ErrNetwork)
	e.mu.Lock()
	if t.epoch == e.epoch {
		e.lastErr = marked
	}
	e.mu.Unlock()
	e.logger.Warn("remote cart update failed", zap.String("variant_id", t.variantID), zap.Error(err))
	return marked
}

// dropSession forgets a session the backend no longer knows and re-queues every other
// local line so the replacement session ends up with the whole draft.
func (e *Engine) dropSession(ctx context.Context, t *ticket, sessionID string) {
	var reseed []*ticket
	e.mu.Lock()
	if t.epoch == e.epoch && e.sessionID == sessionID {
		e.sessionID = ""
		e.checkoutURL = ""
		e.confirmed = nil
		e.version++
		for _, l := range e.lines {
			if l.VariantID != t.variantID {
				reseed = append(reseed, e.enqueueLocked(l.VariantID))
			}
		}
	}
	e.mu.Unlock()

	e.logger.Info("remote cart expired, recreating", zap.String("session_id", sessionID), zap.Int("requeued", len(reseed)))
	for _, rt := range reseed {
		e.bg.Add(1)
		go func() {
			defer e.bg.Done()
			_ = e.push(ctx, rt)
		}()
	}
}

func (e *Engine) finish(t *ticket) {
	e.mu.Lock()
	e.pending--
	e.completed++
	if c, ok := e.chains[t.variantID]; ok && c.latest == t.seq {
		delete(e.chains, t.variantID)
	}
	e.mu.Unlock()
	close(t.done)
}
