package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/parlorgames/parlord/pkg/errkind"
)

// Registry stores game modules by type id and owns the live game states.
// Dispatch is the single mutation entry for game state: it runs the module
// reducer and swaps in the successor state atomically, so a failing reducer
// never leaves a partially mutated game behind.
type Registry struct {
	log slog.Logger

	mu      sync.RWMutex
	modules map[string]Module
	games   map[string]State
}

// NewRegistry creates an empty registry.
func NewRegistry(log slog.Logger) *Registry {
	return &Registry{
		log:     log,
		modules: make(map[string]Module),
		games:   make(map[string]State),
	}
}

// RegisterModule installs a module under its metadata type id.
func (r *Registry) RegisterModule(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Meta().Type] = m
}

// Module returns the module registered for typeID.
func (r *Registry) Module(typeID string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[typeID]
	return m, ok
}

// Metas lists the metadata of every registered module, ordered by type id.
func (r *Registry) Metas() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]Meta, 0, len(r.modules))
	for _, m := range r.modules {
		metas = append(metas, m.Meta())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Type < metas[j].Type })
	return metas
}

// ValidateSettings validates a partial settings map for typeID. Unknown game
// types pass the input through unchanged.
func (r *Registry) ValidateSettings(typeID string, partial map[string]interface{}) Settings {
	m, ok := r.Module(typeID)
	if !ok {
		return Settings(partial)
	}
	return Validate(m.Meta().Settings, partial)
}

// CreateGame initializes a new game of typeID for the given room and stores
// it. The room's settings must already be validated.
func (r *Registry) CreateGame(typeID string, room RoomInfo) (State, error) {
	m, ok := r.Module(typeID)
	if !ok {
		return nil, errkind.New(errkind.BadRequest, "unknown game type %q", typeID)
	}

	st, err := m.Init(room)
	if err != nil {
		return nil, fmt.Errorf("init %s game: %w", typeID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.games[st.ID()]; exists {
		return nil, errkind.New(errkind.Conflict, "game id %s already exists", st.ID())
	}
	r.games[st.ID()] = st
	r.log.Debugf("created %s game %s for room %s", typeID, st.ID(), room.RoomID)
	return st, nil
}

// Game returns the live state for gameID.
func (r *Registry) Game(gameID string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.games[gameID]
	return st, ok
}

// Dispatch applies one action through the owning module's reducer and commits
// the successor state. A history entry is appended to the committed state in
// commit order.
func (r *Registry) Dispatch(gameID string, act Action) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.games[gameID]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "game %s not found", gameID)
	}
	m, ok := r.modules[st.GameType()]
	if !ok {
		return nil, errkind.New(errkind.Internal, "no module for game type %q", st.GameType())
	}

	next, err := m.Reduce(st, act)
	if err != nil {
		return nil, err
	}

	next.appendHistory(HistoryEntry{
		Seq:    next.historyLen() + 1,
		Action: act.Kind(),
		Actor:  act.Actor(),
		At:     time.Now(),
	})
	r.games[gameID] = next
	return next, nil
}

// Update runs fn against the live state and commits its result. It is used
// for the non-action hooks (disconnect, reconnect, leave, slot transfer) that
// must observe the same atomic-swap discipline as Dispatch.
func (r *Registry) Update(gameID string, fn func(Module, State) (State, error)) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.games[gameID]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "game %s not found", gameID)
	}
	m, ok := r.modules[st.GameType()]
	if !ok {
		return nil, errkind.New(errkind.Internal, "no module for game type %q", st.GameType())
	}

	next, err := fn(m, st)
	if err != nil {
		return nil, err
	}
	r.games[gameID] = next
	return next, nil
}

// RemoveGame drops a live game. Removing an absent game is a no-op.
func (r *Registry) RemoveGame(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

// NewGameID mints a unique game id.
func NewGameID() string {
	return "game_" + uuid.NewString()
}
