package server

import (
	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
)

// completer is implemented by game states that can report a terminal phase.
type completer interface {
	Completed() bool
}

// DispatchAction routes a player action into the game reducer, rearms or
// clears the turn timer, and fans out the resulting state.
func (s *Server) DispatchAction(roomID, userID string, act engine.Action) error {
	return s.dispatch(roomID, userID, act, EventSync)
}

func (s *Server) dispatch(roomID, userID string, act engine.Action, event string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != RoomStateInGame || r.GameID == "" {
		return errkind.New(errkind.Conflict, "no game is running")
	}
	if r.IsPaused {
		return errkind.New(errkind.Conflict, "the game is paused")
	}
	if u := r.user(userID); u == nil || r.isSpectator(userID) {
		return errkind.New(errkind.Forbidden, "you are not a participant in this game")
	}
	if act.Actor() != userID {
		return errkind.New(errkind.BadRequest, "action actor does not match the caller")
	}

	s.timers.CancelTurn(r.GameID)
	st, err := s.engine.Dispatch(r.GameID, act)
	if err != nil {
		// The failed action consumed no turn, so put the timer back.
		if prev, ok := s.engine.Game(r.GameID); ok {
			s.armTurnTimer(r, prev)
		}
		return err
	}

	s.emitGameEvent(r, event, map[string]interface{}{"action": act.Kind()})

	if c, ok := st.(completer); ok && c.Completed() {
		s.endGameLocked(r)
		return nil
	}
	s.armTurnTimer(r, st)
	return nil
}

// armTurnTimer starts the timer for the state's current turn when the phase
// is turn-timed. Callers must hold the room lock.
func (s *Server) armTurnTimer(r *Room, st engine.State) {
	mod, ok := s.engine.Module(st.GameType())
	if !ok {
		return
	}
	playerID, seconds, ok := mod.CurrentTurn(st)
	if !ok {
		return
	}
	roomID := r.ID
	gameID := st.ID()
	s.timers.StartTurn(gameID, playerID, seconds, func() {
		s.handleTurnTimeout(roomID, gameID, playerID)
	})
}

// handleTurnTimeout dispatches the module's auto-action for an expired turn.
// It runs on a timer goroutine and re-enters the server like any client
// action would.
func (s *Server) handleTurnTimeout(roomID, gameID, playerID string) {
	r, err := s.room(roomID)
	if err != nil {
		return
	}

	r.mu.RLock()
	stale := r.GameID != gameID || r.IsPaused
	r.mu.RUnlock()
	if stale {
		return
	}

	st, ok := s.engine.Game(gameID)
	if !ok {
		return
	}
	mod, ok := s.engine.Module(st.GameType())
	if !ok {
		return
	}
	act := mod.AutoAction(st)
	if act == nil {
		return
	}

	s.log.Debugf("turn timeout in game %s, auto-acting for %s", gameID, playerID)
	if err := s.dispatch(roomID, act.Actor(), act, EventTurnTimeout); err != nil {
		s.log.Warnf("auto action failed in game %s: %v", gameID, err)
	}
}

// endGameLocked returns a finished room to the lobby. The final state was
// already broadcast by the dispatch that finished the game. Callers must hold
// the room lock.
func (s *Server) endGameLocked(r *Room) {
	gameID := r.GameID
	s.timers.CancelTurn(gameID)
	s.engine.RemoveGame(gameID)
	r.GameID = ""
	r.IsPaused = false
	r.PausedAt = nil
	r.TimeoutAt = nil
	s.cancelReconnectTimeout(r)
	r.Spectators = nil
	// Former spectators are full lobby members again, so rebuild the ready
	// table from the roster.
	r.ReadyStates = make(map[string]bool, len(r.Users))
	for _, u := range r.Users {
		r.ReadyStates[u.ID] = false
	}
	r.lifecycle.Dispatch(stateLobby)

	s.log.Infof("game %s finished in room %s", gameID, r.ID)
	s.emitRoomEvent(r, EventGameEnded, map[string]interface{}{"gameId": gameID})
}
