// Package checkout drives a checkout flow through its states:
//
//	form -> processing -> pix -> success
//
// with error reachable from processing and a retry path back to form. While a
// session sits in pix, a poller watches the gateway for settlement in parallel
// with the webhook; closing the session tears the poller down.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dcutelaria/storefront/internal/podpay"
	"github.com/google/uuid"
)

type State string

const (
	StateForm       State = "form"
	StateProcessing State = "processing"
	StatePix        State = "pix"
	StateSuccess    State = "success"
	StateError      State = "error"
)

var ErrBadTransition = errors.New("invalid checkout state transition")

// Session is one checkout flow instance. All mutation goes through the
// transition methods; reads go through Snapshot.
type Session struct {
	mu sync.Mutex

	id            string
	createdAt     time.Time
	state         State
	orderID       string
	cartSessionID string
	transaction   *podpay.Transaction
	errorMessage  string

	// guards the one-time "mark order paid" write across poll ticks
	orderSaved bool

	cancel context.CancelFunc
}

// View is an immutable snapshot of a session for handlers and tests.
type View struct {
	ID           string              `json:"id"`
	State        State               `json:"state"`
	OrderID      string              `json:"orderId,omitempty"`
	Transaction  *podpay.Transaction `json:"transaction,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
}

func newSession(cartSessionID string) *Session {
	return &Session{
		id:            uuid.New().String(),
		createdAt:     time.Now(),
		state:         StateForm,
		cartSessionID: cartSessionID,
	}
}

func (s *Session) ID() string { return s.id }

// CartSessionID is empty for single-product checkouts; the completion path
// clears the cart only when it is set.
func (s *Session) CartSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartSessionID
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		ID:           s.id,
		State:        s.state,
		OrderID:      s.orderID,
		Transaction:  s.transaction,
		ErrorMessage: s.errorMessage,
	}
}

// BeginProcessing moves form -> processing on submit.
func (s *Session) BeginProcessing() error {
	return s.transition(StateForm, StateProcessing, func() {})
}

// EnterPix records the created transaction and moves processing -> pix.
func (s *Session) EnterPix(orderID string, tx *podpay.Transaction) error {
	return s.transition(StateProcessing, StatePix, func() {
		s.orderID = orderID
		s.transaction = tx
		s.errorMessage = ""
	})
}

// Fail moves processing -> error; the message is always surfaced to the buyer
// together with a retry action, never swallowed.
func (s *Session) Fail(message string) error {
	return s.transition(StateProcessing, StateError, func() {
		s.errorMessage = message
	})
}

// Retry moves error -> form.
func (s *Session) Retry() error {
	return s.transition(StateError, StateForm, func() {
		s.errorMessage = ""
	})
}

// succeed moves pix -> success and stops the poll. Called by the poller.
func (s *Session) succeed() error {
	err := s.transition(StatePix, StateSuccess, func() {})
	if err == nil {
		s.stopPolling()
	}
	return err
}

// failPix moves pix -> error when the charge dies before settlement (gateway
// reports it cancelled or expired). The poll stops; retry returns to the form.
func (s *Session) failPix(message string) error {
	err := s.transition(StatePix, StateError, func() {
		s.errorMessage = message
	})
	if err == nil {
		s.stopPolling()
	}
	return err
}

func (s *Session) transition(from, to State, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrBadTransition, from, to, s.state)
	}
	apply()
	s.state = to
	return nil
}

// markOrderSavedOnce reports true exactly once per session, so the poll loop
// writes the paid status a single time even across racing ticks.
func (s *Session) markOrderSavedOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderSaved {
		return false
	}
	s.orderSaved = true
	return true
}

func (s *Session) transactionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transaction == nil {
		return ""
	}
	return s.transaction.TransactionID
}

func (s *Session) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// stopPolling takes the cancel func under the lock and invokes it after
// unlocking, so racing callers (poller settlement vs Close) each see either
// the func or nil, never a half-cleared field.
func (s *Session) stopPolling() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close tears down the session at any state: the poll is cancelled and
// in-flight checkout state is discarded. A server-side order already created
// stays in waiting_payment for the webhook or an operator to reconcile.
func (s *Session) Close() {
	s.stopPolling()
}

// SessionTTL bounds how long an abandoned checkout stays registered. A buyer
// who closes the browser never sends the DELETE, so stale sessions are swept
// opportunistically instead of living forever.
const SessionTTL = time.Hour

// Manager is the registry of live checkout sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create(cartSessionID string) *Session {
	s := newSession(cartSessionID)

	m.mu.Lock()
	expired := m.pruneLocked(time.Now())
	m.sessions[s.id] = s
	m.mu.Unlock()

	for _, e := range expired {
		e.Close()
	}
	return s
}

// pruneLocked drops sessions older than SessionTTL and returns them so the
// caller can close them outside the registry lock.
func (m *Manager) pruneLocked(now time.Time) []*Session {
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.createdAt) > SessionTTL {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	return expired
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes the session and drops it from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}
