package session

import (
	"sync"
	"time"

	"restaurant-receptionist/internal/models"
)

// Session is the conversational state of one call or chat. Turn-level
// exclusivity comes from Store.Acquire; mu only guards field access.
type Session struct {
	ID        string
	Channel   models.Channel
	CreatedAt time.Time

	mu           sync.Mutex
	callerID     string
	lastActivity time.Time
	history      []models.Exchange
	historySize  int
	order        models.Order
	reservation  models.Reservation

	turn      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, channel models.Channel, historySize int, now time.Time) *Session {
	return &Session{
		ID:           id,
		Channel:      channel,
		CreatedAt:    now,
		lastActivity: now,
		historySize:  historySize,
		order:        models.Order{State: models.OrderIdle},
		reservation:  models.Reservation{State: models.ReservationIdle},
		turn:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Done is closed when the session expires or the call ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Expired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) expire() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) CallerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callerID
}

func (s *Session) SetCallerID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.callerID = id
	s.mu.Unlock()
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// History returns a copy of the retained exchanges, oldest first.
func (s *Session) History() []models.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Exchange, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Order() models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Clone()
}

func (s *Session) Reservation() models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservation.Clone()
}

// Record appends ex to the history, dropping the oldest exchanges past the
// cap, and stores the drafts the turn produced.
func (s *Session) Record(ex models.Exchange, order models.Order, res models.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ex)
	if s.historySize > 0 && len(s.history) > s.historySize {
		s.history = append([]models.Exchange(nil), s.history[len(s.history)-s.historySize:]...)
	}
	s.order = order.Clone()
	s.reservation = res.Clone()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// Snapshot is the persisted form of a session.
type Snapshot struct {
	ID           string             `json:"id"`
	Channel      models.Channel     `json:"channel"`
	CallerID     string             `json:"callerId,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastActivity time.Time          `json:"lastActivity"`
	History      []models.Exchange  `json:"history"`
	Order        models.Order       `json:"order"`
	Reservation  models.Reservation `json:"reservation"`
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := make([]models.Exchange, len(s.history))
	copy(hist, s.history)
	return Snapshot{
		ID:           s.ID,
		Channel:      s.Channel,
		CallerID:     s.callerID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		History:      hist,
		Order:        s.order.Clone(),
		Reservation:  s.reservation.Clone(),
	}
}

func (s *Session) restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callerID = snap.CallerID
	s.CreatedAt = snap.CreatedAt
	s.history = snap.History
	if s.historySize > 0 && len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
	s.order = snap.Order
	s.reservation = snap.Reservation
	if snap.Channel != "" {
		s.Channel = snap.Channel
	}
}
