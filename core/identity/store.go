package identity

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Record states that an admin is currently viewing the app as another user.
type Record struct {
	AdminID           string    `json:"admin_id"`
	TargetUserID      string    `json:"target_user_id"`
	TargetDisplayName string    `json:"target_display_name"`
	StartedAt         time.Time `json:"started_at"`
}

// Store holds at most one impersonation Record per admin session.
// Records are keyed by session id, so concurrent sessions of the same admin do not interfere.
// They expire with the session (ttl) and the least recently used ones are dropped past maxSessions;
// a dropped record simply ends the impersonation.
type Store struct {
	records *expirable.LRU[string, Record]
	onStart func(Record)

	// NowFunc is mockable in tests.
	NowFunc func() time.Time
}

// NewStore starts the LRU's purge goroutine, which runs until the process exits.
// Build one store per process.
func NewStore(maxSessions int, ttl time.Duration) *Store {
	return &Store{
		records: expirable.NewLRU[string, Record](maxSessions, nil, ttl),
		NowFunc: time.Now,
	}
}

// OnStart registers a hook called after every successful Start.
func (s *Store) OnStart(fn func(Record)) {
	s.onStart = fn
}

// Start records that `p` now acts as targetID, replacing any record of the same session.
func (s *Store) Start(p Principal, targetID, targetName string) (Record, error) {
	if !p.IsAdmin() {
		return Record{}, ErrForbidden
	}
	if p.SessionID == "" {
		return Record{}, ErrNoSession
	}

	rec := Record{
		AdminID:           p.ID,
		TargetUserID:      targetID,
		TargetDisplayName: targetName,
		StartedAt:         s.NowFunc().UTC(),
	}
	s.records.Add(p.SessionID, rec)
	if s.onStart != nil {
		s.onStart(rec)
	}
	return rec, nil
}

// Stop ends the impersonation of p's session. It is a no-op when there is none.
func (s *Store) Stop(p Principal) {
	if p.SessionID == "" {
		return
	}
	if rec, ok := s.records.Peek(p.SessionID); ok && rec.AdminID == p.ID {
		s.records.Remove(p.SessionID)
	}
}

// Current returns the active record of p's session, if any.
// Records are only ever returned to the admin who started them.
func (s *Store) Current(p Principal) (Record, bool) {
	if !p.CanImpersonate() {
		return Record{}, false
	}
	rec, ok := s.records.Peek(p.SessionID)
	if !ok || rec.AdminID != p.ID {
		return Record{}, false
	}
	return rec, true
}

// Len returns the number of active impersonations.
func (s *Store) Len() int {
	return s.records.Len()
}
