package trust

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const remoteTimeout = 5 * time.Second

// LocalCache persists a user's trust settings on-device. Implementations
// must be cheap enough to call synchronously on every update.
type LocalCache interface {
	// Load returns the cached settings for a user. ok=false means no entry.
	Load(userID string) (Settings, bool, error)

	// Save overwrites the cached settings for a user.
	Save(userID string, s Settings) error

	// Clear removes the cached settings for a user.
	Clear(userID string) error
}

// RemoteStore syncs trust settings to durable shared storage. All calls are
// best-effort from the Store's point of view: failures are logged, never
// propagated.
type RemoteStore interface {
	// Fetch returns the remote settings for a user. ok=false means no row.
	Fetch(ctx context.Context, userID string) (Settings, bool, error)

	// Save overwrites the remote settings for a user.
	Save(ctx context.Context, userID string, s Settings) error
}

// Listener receives a total copy of the settings after every change.
type Listener func(Settings)

// Store answers "is category C trusted for this user" from in-memory state,
// writing through to the local cache synchronously and to the remote store
// in the background. Local state is authoritative: a failed remote write
// never rolls back what the user just decided.
//
// Before Initialize (and after Clear) every category reads as ask.
type Store struct {
	local  LocalCache  // nil disables local caching
	remote RemoteStore // nil disables remote sync
	logger *zap.Logger

	mu       sync.RWMutex
	userID   string
	settings Settings // nil until Initialize
	subs     map[int]Listener
	nextSub  int

	resync *cron.Cron
}

// StoreConfig configures a trust Store. Local and Remote may each be nil.
type StoreConfig struct {
	Local  LocalCache
	Remote RemoteStore
	Logger *zap.Logger
}

// NewStore creates a trust Store. No user is loaded until Initialize.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		local:  cfg.Local,
		remote: cfg.Remote,
		logger: logger,
		subs:   make(map[int]Listener),
	}
}

// Initialize loads the user's settings: the local cache synchronously, so
// callers get a correct answer before any network round-trip, then the
// remote copy in the background, overwriting memory and local cache if the
// fetch succeeds. Re-calling with a different user re-initializes from
// scratch. Never returns an error — a missing or failing backend leaves the
// ask-everything default in place.
func (s *Store) Initialize(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.settings = DefaultSettings()
	if s.local != nil {
		cached, ok, err := s.local.Load(userID)
		if err != nil {
			s.logger.Warn("trust local cache load failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		} else if ok {
			s.settings = cached.normalized()
		}
	}
	s.mu.Unlock()
	s.notify()

	if s.remote != nil {
		go s.syncFromRemote(userID)
	}
}

// syncFromRemote fetches the remote copy and, if the user is still the
// initialized one, overwrites in-memory state and the local cache.
func (s *Store) syncFromRemote(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	remote, ok, err := s.remote.Fetch(ctx, userID)
	if err != nil {
		s.logger.Warn("trust remote fetch failed, local cache stays authoritative",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}
	if !ok {
		return
	}

	normalized := remote.normalized()

	s.mu.Lock()
	if s.userID != userID || s.settings == nil {
		// User switched or logged out while the fetch was in flight.
		s.mu.Unlock()
		return
	}
	s.settings = normalized
	s.saveLocalLocked()
	s.mu.Unlock()
	s.notify()
}

// StartResync schedules a periodic remote re-fetch (cron spec, e.g.
// "@every 5m") so long-lived sessions converge with changes made on other
// devices. No-op if there is no remote store.
func (s *Store) StartResync(schedule string) error {
	if s.remote == nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		s.mu.RLock()
		userID := s.userID
		initialized := s.settings != nil
		s.mu.RUnlock()
		if initialized && userID != "" {
			s.syncFromRemote(userID)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	s.resync = c
	return nil
}

// StopResync stops the periodic re-fetch, if one was started.
func (s *Store) StopResync() {
	if s.resync != nil {
		s.resync.Stop()
		s.resync = nil
	}
}

// Settings returns a total, defensive copy of the current mapping.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return DefaultSettings()
	}
	return s.settings.clone()
}

// IsTrusted reports whether the category executes without confirmation.
func (s *Store) IsTrusted(c Category) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return false
	}
	return s.settings[c] == LevelAuto
}

// NeedsConfirmation reports whether the category must be confirmed first.
// Fail safe: an uninitialized store and unknown categories both say yes.
func (s *Store) NeedsConfirmation(c Category) bool {
	return !s.IsTrusted(c)
}

// Update sets one category's level: in-memory state and local cache
// synchronously, so the very next IsTrusted call sees the new value, then
// the remote store in the background. Invalid input is ignored.
func (s *Store) Update(c Category, l Level) {
	if !c.Valid() || !l.Valid() {
		s.logger.Warn("ignoring invalid trust update",
			zap.String("category", string(c)),
			zap.String("level", string(l)),
		)
		return
	}

	s.mu.Lock()
	if s.settings == nil {
		s.settings = DefaultSettings()
	}
	s.settings[c] = l
	s.saveLocalLocked()
	userID := s.userID
	snapshot := s.settings.clone()
	s.mu.Unlock()

	s.notify()
	s.saveRemote(userID, snapshot)
}

// RevokeAll resets every category to ask, with the same local-first,
// remote-background discipline as Update.
func (s *Store) RevokeAll() {
	s.mu.Lock()
	s.settings = DefaultSettings()
	s.saveLocalLocked()
	userID := s.userID
	snapshot := s.settings.clone()
	s.mu.Unlock()

	s.notify()
	s.saveRemote(userID, snapshot)
}

// Clear wipes in-memory state and the local cache on logout. Until the next
// Initialize, every category reads as ask.
func (s *Store) Clear() {
	s.mu.Lock()
	userID := s.userID
	s.userID = ""
	s.settings = nil
	s.mu.Unlock()

	if s.local != nil && userID != "" {
		if err := s.local.Clear(userID); err != nil {
			s.logger.Warn("trust local cache clear failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	s.notify()
}

// Subscribe registers a listener for settings changes and returns its
// unsubscribe function. Callers must pair the two across mount/unmount
// cycles or the listener leaks.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// saveLocalLocked writes the current settings to the local cache.
// Caller holds s.mu.
func (s *Store) saveLocalLocked() {
	if s.local == nil || s.userID == "" || s.settings == nil {
		return
	}
	if err := s.local.Save(s.userID, s.settings.clone()); err != nil {
		s.logger.Warn("trust local cache save failed",
			zap.String("user_id", s.userID),
			zap.Error(err),
		)
	}
}

// saveRemote persists a snapshot in the background. Failures are logged and
// do not roll back local state.
func (s *Store) saveRemote(userID string, snapshot Settings) {
	if s.remote == nil || userID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		if err := s.remote.Save(ctx, userID, snapshot); err != nil {
			s.logger.Warn("trust remote save failed, local state kept",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}()
}

// notify delivers a settings snapshot to every subscriber outside the lock.
func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, l := range s.subs {
		listeners = append(listeners, l)
	}
	var snapshot Settings
	if s.settings == nil {
		snapshot = DefaultSettings()
	} else {
		snapshot = s.settings.clone()
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(snapshot)
	}
}
