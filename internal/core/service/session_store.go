package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/api/metrics"
	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

const defaultGateTimeout = 10 * time.Second

// Resolver is the authorization step run for every new credential.
type Resolver interface {
	Resolve(ctx context.Context, cred *domain.Credential) (Decision, error)
}

// sessionEntry is the single-flight state of one session: the current state
// and the generation of the latest auth event. A gate result is applied only
// if its generation is still the latest.
type sessionEntry struct {
	state      domain.SessionState
	generation uint64
	updatedAt  time.Time
	// resolving is the credential the gate is currently running for.
	resolving *domain.Credential
	// deniedUID is the account this session's gate last revoked.
	deniedUID string
}

func sameIdentity(a, b *domain.Credential) bool {
	return a != nil && b != nil && a.UID == b.UID && a.Email == b.Email
}

// SessionStore follows the authentication-state stream and keeps the
// derived SessionState of every session.
//
// Listeners run with the store locked and must not call back into it.
type SessionStore struct {
	gate    Resolver
	timeout time.Duration
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	sessions    map[string]*sessionEntry
	listeners   map[uint64]ports.SessionListener
	nextID      uint64
	closed      bool
	unsubscribe func()
}

// NewSessionStore subscribes to source immediately. Call Close to stop.
func NewSessionStore(source ports.AuthStateSource, gate Resolver, timeout time.Duration, log zerolog.Logger) *SessionStore {
	if timeout <= 0 {
		timeout = defaultGateTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionStore{
		gate:      gate,
		timeout:   timeout,
		log:       log.With().Str("component", "session_store").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*sessionEntry),
		listeners: make(map[uint64]ports.SessionListener),
	}
	unsubscribe := source.Subscribe(s.handle)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return s
}

// Current returns the state of a session. Sessions the stream never
// mentioned are reported as loading with known == false.
func (s *SessionStore) Current(sessionID string) (domain.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return domain.LoadingState(), false
	}
	return e.state, true
}

// Subscribe registers a listener for every state transition.
func (s *SessionStore) Subscribe(listener ports.SessionListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Wait blocks until the session is settled or ctx is done.
func (s *SessionStore) Wait(ctx context.Context, sessionID string) (domain.SessionState, error) {
	settled := make(chan domain.SessionState, 1)
	unsubscribe := s.Subscribe(func(id string, st domain.SessionState) {
		if id != sessionID || st.Loading {
			return
		}
		select {
		case settled <- st:
		default:
		}
	})
	defer unsubscribe()

	if st, ok := s.Current(sessionID); ok && !st.Loading {
		return st, nil
	}

	select {
	case st := <-settled:
		return st, nil
	case <-ctx.Done():
		st, _ := s.Current(sessionID)
		return st, ctx.Err()
	}
}

// Prune forgets sessions that settled without access, or whose credential
// expired, more than grace ago.
func (s *SessionStore) Prune(now time.Time, grace time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if e.state.Loading || now.Sub(e.updatedAt) < grace {
			continue
		}
		cred := e.state.Credential
		if cred == nil || (!cred.ExpiresAt.IsZero() && now.After(cred.ExpiresAt)) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Close unsubscribes from the stream. No state is updated or published
// afterwards, including results of lookups still in flight.
func (s *SessionStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = make(map[uint64]ports.SessionListener)
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *SessionStore) handle(ev ports.AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	e, ok := s.sessions[ev.SessionID]
	if !ok {
		e = &sessionEntry{}
		s.sessions[ev.SessionID] = e
	}
	if ev.Err == nil && e.state.Loading && sameIdentity(e.resolving, ev.Credential) {
		s.log.Debug().Str("session_id", ev.SessionID).Msg("credential already being resolved")
		return
	}
	e.generation++
	e.resolving = nil

	switch {
	case ev.Err != nil:
		s.log.Error().Err(ev.Err).Str("session_id", ev.SessionID).Msg("authentication stream error")
		s.set(ev.SessionID, e, domain.SessionState{Err: ev.Err})
	case ev.Credential == nil:
		s.set(ev.SessionID, e, domain.SessionState{})
	default:
		e.resolving = ev.Credential
		s.set(ev.SessionID, e, domain.LoadingState())
		s.wg.Add(1)
		go s.resolve(ev.SessionID, e.generation, ev.Credential)
	}
}

func (s *SessionStore) resolve(sessionID string, generation uint64, cred *domain.Credential) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	decision, err := s.gate.Resolve(ctx, cred)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	e, ok := s.sessions[sessionID]
	if !ok || e.generation != generation {
		metrics.SessionsResolvedTotal.WithLabelValues("stale").Inc()
		s.log.Debug().Str("session_id", sessionID).Uint64("generation", generation).Msg("discarding stale resolution")
		return
	}

	e.resolving = nil
	var next domain.SessionState
	switch {
	case err != nil:
		metrics.SessionsResolvedTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("session_id", sessionID).Str("email", cred.Email).Msg("authorization lookup failed")
		next = domain.SessionState{Err: err}
	case decision.Authorized():
		metrics.SessionsResolvedTotal.WithLabelValues("authorized").Inc()
		s.log.Info().Str("session_id", sessionID).Str("member_id", decision.Member.ID).Msg("session authorized")
		next = domain.SessionState{Credential: decision.Credential, Member: decision.Member}
	case decision.Revocation != nil:
		metrics.SessionsResolvedTotal.WithLabelValues("denied").Inc()
		e.deniedUID = cred.UID
		next = domain.SessionState{Notice: domain.DeniedNotice}
	case e.deniedUID == cred.UID:
		// A replay of a credential this session already revoked.
		next = domain.SessionState{Notice: domain.DeniedNotice}
	default:
		next = domain.SessionState{}
	}
	s.set(sessionID, e, next)
}

// set must be called with s.mu held.
func (s *SessionStore) set(sessionID string, e *sessionEntry, state domain.SessionState) {
	e.state = state
	e.updatedAt = time.Now()
	for _, l := range s.listeners {
		l(sessionID, state)
	}
}
