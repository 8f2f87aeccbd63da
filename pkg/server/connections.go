package server

import (
	"time"

	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
)

// RegisterConn installs a socket for a (room,user) pair after the transport
// handshake. The returned oldSocketID is non-empty when a previous socket for
// the same user must be closed by the caller; the new socket always wins, even
// when the old socket was held in a different room.
func (s *Server) RegisterConn(socketID, roomID, userID string) (oldSocketID string, err error) {
	r, err := s.room(roomID)
	if err != nil {
		return "", err
	}

	oldSocketID, prevRoomID, err := s.installConn(r, socketID, roomID, userID)
	if err != nil {
		return oldSocketID, err
	}

	// A socket the user held in another room closes as superseded without
	// touching that room's roster, so apply its disconnect there now.
	if prevRoomID != "" {
		if prev, err := s.room(prevRoomID); err == nil {
			prev.mu.Lock()
			s.handleUserDisconnect(prev, userID)
			prev.mu.Unlock()
		}
	}
	return oldSocketID, nil
}

// installConn validates membership, swaps the socket indices, and marks the
// user connected. It reports the evicted socket and, when that socket lived
// in another room, the room whose roster still needs the disconnect. A failed
// registration leaves the indices untouched.
func (s *Server) installConn(r *Room, socketID, roomID, userID string) (oldSocketID, prevRoomID string, err error) {
	s.mu.Lock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.KickedUserIDs[userID] {
		s.mu.Unlock()
		return "", "", errkind.New(errkind.Forbidden, "you have been removed from this room")
	}
	u := r.user(userID)
	if u == nil {
		s.mu.Unlock()
		return "", "", errkind.New(errkind.NotFound, "user %s is not in room %s", userID, roomID)
	}

	if prev, ok := s.userToSocket[userID]; ok && prev != socketID {
		if ref, ok := s.socketToUser[prev]; ok {
			oldSocketID = prev
			delete(s.socketToUser, prev)
			if ref.RoomID != roomID {
				prevRoomID = ref.RoomID
			}
		}
	}
	s.socketToUser[socketID] = SocketRef{RoomID: roomID, UserID: userID}
	s.userToSocket[userID] = socketID
	s.mu.Unlock()

	returning := u.everConnected
	u.everConnected = true
	if !u.Connected {
		u.Connected = true
		// A first-ever attach announces a roster sync; a return after a
		// disconnect announces the reconnect.
		event := EventUserReconnected
		if !returning {
			event = EventSync
		}
		if r.State == RoomStateInGame && r.GameID != "" && !r.isSpectator(userID) {
			if _, err := s.engine.Update(r.GameID, func(m engine.Module, st engine.State) (engine.State, error) {
				return m.HandleReconnect(st, userID), nil
			}); err != nil {
				s.log.Warnf("reconnect hook failed for %s in game %s: %v", userID, r.GameID, err)
			}
			s.emitRoomEvent(r, event, map[string]interface{}{"userId": userID})
			s.emitGameEvent(r, EventSync, nil)
			s.maybeResumeGame(r)
		} else {
			s.emitRoomEvent(r, event, map[string]interface{}{"userId": userID})
		}
	}

	s.log.Debugf("socket %s registered for user %s in room %s", socketID, userID, roomID)
	return oldSocketID, prevRoomID, nil
}

// maybeResumeGame clears the pause once the module reports quorum again.
// Callers must hold the room lock.
func (s *Server) maybeResumeGame(r *Room) {
	if !r.IsPaused || r.GameID == "" {
		return
	}
	st, ok := s.engine.Game(r.GameID)
	if !ok {
		return
	}
	mod, ok := s.engine.Module(st.GameType())
	if !ok || !mod.CheckMinimumPlayers(st) {
		return
	}

	r.IsPaused = false
	r.PausedAt = nil
	r.TimeoutAt = nil
	s.cancelReconnectTimeout(r)
	s.timers.ResumeTurn(r.GameID)
	s.log.Infof("game %s resumed in room %s", r.GameID, r.ID)
	s.emitRoomEvent(r, EventGameResumed, nil)
	s.emitGameEvent(r, EventGameResumed, nil)
}

// pauseGame marks the room paused and arms the reconnect-abort timer.
// Callers must hold the room lock.
func (s *Server) pauseGame(r *Room) {
	if r.IsPaused || r.GameID == "" {
		return
	}
	now := time.Now()
	timeoutAt := now.Add(s.cfg.ReconnectTimeout)
	r.IsPaused = true
	r.PausedAt = &now
	r.TimeoutAt = &timeoutAt

	s.timers.PauseTurn(r.GameID)
	s.armReconnectTimeout(r)
	s.log.Infof("game %s paused in room %s until %s", r.GameID, r.ID, timeoutAt.Format(time.RFC3339))
	s.emitRoomEvent(r, EventGamePaused, nil)
}

// armReconnectTimeout starts the abort countdown for a paused game. Callers
// must hold the room lock.
func (s *Server) armReconnectTimeout(r *Room) {
	s.cancelReconnectTimeout(r)
	r.reconnectTimer = time.AfterFunc(s.cfg.ReconnectTimeout, func() {
		s.abortOnReconnectTimeout(r.ID)
	})
}

// cancelReconnectTimeout clears a pending abort timer. Idempotent. Callers
// must hold the room lock.
func (s *Server) cancelReconnectTimeout(r *Room) {
	if r.reconnectTimer != nil {
		r.reconnectTimer.Stop()
		r.reconnectTimer = nil
	}
}

// abortOnReconnectTimeout fires when a paused game ran out of time waiting
// for players.
func (s *Server) abortOnReconnectTimeout(roomID string) {
	r, err := s.room(roomID)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.IsPaused || r.GameID == "" {
		return
	}
	s.abortGameLocked(r, "reconnect_timeout")
}

// abortGameLocked disposes the game and returns the room to the lobby.
// Callers must hold the room lock.
func (s *Server) abortGameLocked(r *Room, reason string) {
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

	s.log.Infof("game %s aborted in room %s: %s", gameID, r.ID, reason)
	s.emitRoomEvent(r, EventGameAborted, map[string]interface{}{"reason": reason})

	if r.connectedCount() == 0 {
		r.Users = nil
		r.ReadyStates = make(map[string]bool)
		r.LeaderID = ""
		s.scheduleRoomDeletion(r)
	}
}

// AbortGame aborts the running game at the leader's request.
func (s *Server) AbortGame(roomID, byUserID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can abort the game")
	}
	if r.GameID == "" {
		return errkind.New(errkind.Conflict, "no game is running")
	}
	s.abortGameLocked(r, "aborted_by_leader")
	return nil
}

// DisconnectSocket handles a transport-reported socket drop. A socket that
// was already superseded by a newer connection for the same user changes
// nothing.
func (s *Server) DisconnectSocket(socketID string) {
	s.mu.Lock()
	ref, ok := s.socketToUser[socketID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.socketToUser, socketID)
	superseded := s.userToSocket[ref.UserID] != socketID
	if !superseded {
		delete(s.userToSocket, ref.UserID)
	}
	room := s.rooms[ref.RoomID]
	s.mu.Unlock()

	if superseded || room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	s.handleUserDisconnect(room, ref.UserID)
}

// handleUserDisconnect applies the disconnect policy: in-game rooms keep the
// user as a reconnect candidate and may pause; lobby rooms drop the user.
// Callers must hold the room lock.
func (s *Server) handleUserDisconnect(r *Room, userID string) {
	u := r.user(userID)
	if u == nil {
		return
	}

	if r.State == RoomStateInGame && r.GameID != "" {
		u.Connected = false
		if !r.isSpectator(userID) {
			st, err := s.engine.Update(r.GameID, func(m engine.Module, st engine.State) (engine.State, error) {
				return m.HandleDisconnect(st, userID), nil
			})
			if err == nil {
				if mod, ok := s.engine.Module(st.GameType()); ok && !mod.CheckMinimumPlayers(st) {
					s.pauseGame(r)
				}
			}
		}
		if r.LeaderID == userID {
			if r.promoteLeader() {
				s.emitRoomEvent(r, EventLeaderPromoted, map[string]interface{}{"userId": r.LeaderID})
			}
		}
		s.emitRoomEvent(r, EventUserDisconnected, map[string]interface{}{"userId": userID})
		return
	}

	r.removeUser(userID)
	if r.promoteLeader() {
		s.emitRoomEvent(r, EventLeaderPromoted, map[string]interface{}{"userId": r.LeaderID})
	}
	s.emitRoomEvent(r, EventUserLeft, map[string]interface{}{"userId": userID})
	if len(r.Users) == 0 {
		s.scheduleRoomDeletion(r)
	}
}

// LeaveGame removes the caller from the running game permanently and moves
// them to the spectators. Their seat stays claimable by a spectator.
func (s *Server) LeaveGame(roomID, userID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != RoomStateInGame || r.GameID == "" {
		return errkind.New(errkind.Conflict, "no game is running")
	}
	if r.user(userID) == nil {
		return errkind.New(errkind.NotFound, "user %s is not in this room", userID)
	}
	if r.isSpectator(userID) {
		return errkind.New(errkind.BadRequest, "spectators are not in the game")
	}

	st, err := s.engine.Update(r.GameID, func(m engine.Module, st engine.State) (engine.State, error) {
		return m.HandleLeave(st, userID), nil
	})
	if err != nil {
		return err
	}
	r.Spectators = append(r.Spectators, userID)
	delete(r.ReadyStates, userID)
	r.clearTeamSlot(userID)
	if r.LeaderID == userID {
		r.LeaderID = ""
		if r.promoteLeader() {
			s.emitRoomEvent(r, EventLeaderPromoted, map[string]interface{}{"userId": r.LeaderID})
		}
	}
	if mod, ok := s.engine.Module(st.GameType()); ok && !mod.CheckMinimumPlayers(st) {
		s.pauseGame(r)
	}
	s.emitRoomEvent(r, EventMovedToSpectators, map[string]interface{}{"userId": userID})
	s.emitGameEvent(r, EventSync, nil)
	return nil
}

// KickUser removes a member by leader decree and deny-lists them. The
// returned socket id, when non-empty, must be closed by the transport.
func (s *Server) KickUser(roomID, byUserID, targetID string) (socketID string, err error) {
	r, err := s.room(roomID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		s.mu.Unlock()
		return "", errkind.New(errkind.Forbidden, "only the leader can kick")
	}
	if byUserID == targetID {
		s.mu.Unlock()
		return "", errkind.New(errkind.BadRequest, "you cannot kick yourself")
	}
	if r.user(targetID) == nil {
		s.mu.Unlock()
		return "", errkind.New(errkind.NotFound, "user %s is not in this room", targetID)
	}

	if sid, ok := s.userToSocket[targetID]; ok {
		if ref, ok := s.socketToUser[sid]; ok && ref.RoomID == r.ID {
			socketID = sid
			delete(s.socketToUser, sid)
			delete(s.userToSocket, targetID)
		}
	}
	s.mu.Unlock()

	wasSpectator := r.isSpectator(targetID)
	r.KickedUserIDs[targetID] = true
	r.removeUser(targetID)

	if r.State == RoomStateInGame && r.GameID != "" && !wasSpectator {
		st, err := s.engine.Update(r.GameID, func(m engine.Module, st engine.State) (engine.State, error) {
			return m.HandleLeave(st, targetID), nil
		})
		if err == nil {
			if mod, ok := s.engine.Module(st.GameType()); ok {
				if !mod.CheckMinimumPlayers(st) {
					s.abortGameLocked(r, "player_kicked")
				} else {
					// The kick may have been the only missing player.
					s.maybeResumeGame(r)
				}
			}
		}
	}
	s.emitRoomEvent(r, EventUserKicked, map[string]interface{}{"userId": targetID})
	return socketID, nil
}

// ClaimSlot lets a spectator take over a departed player's seat. The module
// rewrites the seat's identity while keeping hand, bids, and scores.
func (s *Server) ClaimSlot(roomID, spectatorID, targetPlayerID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != RoomStateInGame || r.GameID == "" {
		return errkind.New(errkind.Conflict, "no game is running")
	}
	if !r.isSpectator(spectatorID) {
		return errkind.New(errkind.Forbidden, "only spectators can claim a slot")
	}
	u := r.user(spectatorID)
	if u == nil {
		return errkind.New(errkind.NotFound, "user %s is not in this room", spectatorID)
	}

	_, err = s.engine.Update(r.GameID, func(m engine.Module, st engine.State) (engine.State, error) {
		return m.TransferSlot(st, targetPlayerID, spectatorID, u.Name)
	})
	if err != nil {
		return err
	}

	// Leave the spectator bench and take over the seat's team slot and
	// ready-state entry.
	for i, id := range r.Spectators {
		if id == spectatorID {
			r.Spectators = append(r.Spectators[:i], r.Spectators[i+1:]...)
			break
		}
	}
	for _, team := range r.Teams {
		for i, id := range team {
			if id == targetPlayerID {
				team[i] = spectatorID
			}
		}
	}
	delete(r.ReadyStates, targetPlayerID)
	r.ReadyStates[spectatorID] = true
	u.Connected = true
	u.everConnected = true

	s.log.Infof("spectator %s claimed the seat of %s in room %s", spectatorID, targetPlayerID, r.ID)
	s.emitRoomEvent(r, EventSlotClaimed, map[string]interface{}{
		"userId":         spectatorID,
		"replacedUserId": targetPlayerID,
	})
	s.emitGameEvent(r, EventSync, nil)
	s.maybeResumeGame(r)
	return nil
}
