package server

import (
	"math/rand"
	"time"

	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
)

// CreateRoom creates a room with the caller as sole member and leader.
func (s *Server) CreateRoom(userID, userName, roomName string, settings RoomSettings) (RoomSnapshot, error) {
	if userID == "" || userName == "" {
		return RoomSnapshot{}, errkind.New(errkind.BadRequest, "user id and name are required")
	}

	s.mu.Lock()
	code := s.newRoomCode()
	r := newRoom(newRoomID(), code, roomName, &User{ID: userID, Name: userName}, settings)
	s.rooms[r.ID] = r
	s.codes[code] = r.ID
	s.mu.Unlock()

	s.log.Infof("room %s created by %s with code %s", r.ID, userID, code)

	r.mu.Lock()
	defer r.mu.Unlock()
	s.emitRoomEvent(r, EventRoomCreated, nil)
	return r.snapshot(), nil
}

// JoinRoom adds a user to the room with the given code. bypassPrivate is set
// only by the accept-request path. Joining a room the user already belongs to
// returns the current snapshot unchanged.
func (s *Server) JoinRoom(code, userID, userName string, bypassPrivate bool) (RoomSnapshot, error) {
	r, err := s.roomByCode(code)
	if err != nil {
		return RoomSnapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.KickedUserIDs[userID] {
		return RoomSnapshot{}, errkind.New(errkind.Forbidden, "you have been removed from this room")
	}
	if r.user(userID) != nil {
		return r.snapshot(), nil
	}
	if r.Settings.IsPrivate && !bypassPrivate {
		return RoomSnapshot{}, errkind.WithCode(errkind.Forbidden, errkind.CodePrivateRoom,
			"this room is private; request to join instead")
	}
	if r.Settings.MaxPlayers > 0 && len(r.Users) >= r.Settings.MaxPlayers {
		return RoomSnapshot{}, errkind.New(errkind.Conflict, "room is full")
	}
	// Mid-game rooms only admit joiners while paused, as replacement
	// candidates.
	if r.State == RoomStateInGame && !r.IsPaused {
		return RoomSnapshot{}, errkind.New(errkind.Conflict, "a game is in progress")
	}

	r.Users = append(r.Users, &User{ID: userID, Name: userName})
	if r.State == RoomStateInGame {
		// Joiners during a paused game spectate until they claim a slot.
		// Spectators carry no ready state.
		r.Spectators = append(r.Spectators, userID)
	} else {
		r.ReadyStates[userID] = false
	}
	s.cancelRoomDeletion(r)

	s.log.Infof("user %s joined room %s", userID, r.ID)
	s.emitRoomEvent(r, EventUserJoined, map[string]interface{}{"userId": userID})
	return r.snapshot(), nil
}

// SetReady sets the caller's ready state.
func (s *Server) SetReady(roomID, userID string, ready bool) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.user(userID) == nil {
		return errkind.New(errkind.NotFound, "user %s is not in this room", userID)
	}
	if _, ok := r.ReadyStates[userID]; !ok {
		return errkind.New(errkind.BadRequest, "spectators have no ready state")
	}
	r.ReadyStates[userID] = ready
	s.emitRoomEvent(r, EventUserReadyStateChanged, map[string]interface{}{
		"userId": userID,
		"ready":  ready,
	})
	return nil
}

// PromoteLeader transfers leadership. Leader-only.
func (s *Server) PromoteLeader(roomID, byUserID, targetID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can promote")
	}
	if r.user(targetID) == nil {
		return errkind.New(errkind.NotFound, "user %s is not in this room", targetID)
	}
	r.LeaderID = targetID
	s.emitRoomEvent(r, EventLeaderPromoted, map[string]interface{}{"userId": targetID})
	return nil
}

// SetTeams installs team assignments. Leader-only. Strict mode requires every
// slot filled and is used by game start; permissive mode allows partial
// assignments for UI edits.
func (s *Server) SetTeams(roomID, byUserID string, teams [][]string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can set teams")
	}
	if err := r.validateTeams(teams, false); err != nil {
		return err
	}
	r.Teams = teams
	s.emitRoomEvent(r, EventTeamsSet, nil)
	return nil
}

// validateTeams checks team assignments against the roster. Duplicates are
// always rejected; strict additionally requires every slot filled.
func (r *Room) validateTeams(teams [][]string, strict bool) error {
	seen := make(map[string]bool)
	for _, team := range teams {
		for _, id := range team {
			if id == EmptySlot {
				if strict {
					return errkind.New(errkind.BadRequest, "all team slots must be filled")
				}
				continue
			}
			if seen[id] {
				return errkind.New(errkind.BadRequest, "user %s assigned to more than one slot", id)
			}
			seen[id] = true
			if r.user(id) == nil {
				return errkind.New(errkind.BadRequest, "user %s is not in this room", id)
			}
			if r.isSpectator(id) {
				return errkind.New(errkind.BadRequest, "spectator %s cannot be on a team", id)
			}
		}
	}
	return nil
}

// RandomizeTeams shuffles the members round-robin into the team shape of the
// selected game. Leader-only.
func (s *Server) RandomizeTeams(roomID, byUserID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can randomize teams")
	}
	mod, ok := s.engine.Module(r.SelectedGameType)
	if !ok || !mod.Meta().RequiresTeams {
		return errkind.New(errkind.BadRequest, "the selected game has no teams")
	}
	meta := mod.Meta()

	members := make([]string, 0, len(r.Users))
	for _, u := range r.Users {
		if !r.isSpectator(u.ID) {
			members = append(members, u.ID)
		}
	}
	rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })

	teams := make([][]string, meta.NumTeams)
	for i := range teams {
		teams[i] = make([]string, meta.PlayersPerTeam)
		for j := range teams[i] {
			teams[i][j] = EmptySlot
		}
	}
	for i, id := range members {
		t := i % meta.NumTeams
		slot := i / meta.NumTeams
		if slot < meta.PlayersPerTeam {
			teams[t][slot] = id
		}
	}
	r.Teams = teams
	s.emitRoomEvent(r, EventTeamsSet, nil)
	return nil
}

// UpdateRoomSettings replaces the room-level settings. Leader-only.
func (s *Server) UpdateRoomSettings(roomID, byUserID string, settings RoomSettings) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can update room settings")
	}
	r.Settings = settings
	s.emitRoomEvent(r, EventRoomSettingsUpdated, nil)
	return nil
}

// UpdateGameSettings validates and stores per-game settings edits. Leader-only.
func (s *Server) UpdateGameSettings(roomID, byUserID, gameType string, partial map[string]interface{}) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can update game settings")
	}
	if _, ok := s.engine.Module(gameType); !ok {
		return errkind.New(errkind.BadRequest, "unknown game type %q", gameType)
	}
	r.GameSettings[gameType] = s.engine.ValidateSettings(gameType, partial)
	s.emitRoomEvent(r, EventGameSettingsUpdated, map[string]interface{}{"gameType": gameType})
	return nil
}

// SelectGame picks the game type the room will play. Leader-only.
func (s *Server) SelectGame(roomID, byUserID, gameType string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can select the game")
	}
	if _, ok := s.engine.Module(gameType); !ok {
		return errkind.New(errkind.BadRequest, "unknown game type %q", gameType)
	}
	r.SelectedGameType = gameType
	s.emitRoomEvent(r, EventGameSelected, map[string]interface{}{"gameType": gameType})
	return nil
}

// StartGame initializes the selected game and moves the room in-game.
// Leader-only; every member must be ready and team validation must pass in
// strict mode when the module requires teams.
func (s *Server) StartGame(roomID, byUserID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can start the game")
	}
	if r.State != RoomStateLobby {
		return errkind.New(errkind.Conflict, "the room is not in the lobby")
	}
	mod, ok := s.engine.Module(r.SelectedGameType)
	if !ok {
		return errkind.New(errkind.BadRequest, "no game selected")
	}
	meta := mod.Meta()

	for id, ready := range r.ReadyStates {
		if !ready {
			return errkind.New(errkind.BadRequest, "user %s is not ready", id)
		}
	}
	if len(r.Users) < meta.MinPlayers || (meta.MaxPlayers > 0 && len(r.Users) > meta.MaxPlayers) {
		return errkind.New(errkind.BadRequest, "%s needs between %d and %d players",
			meta.DisplayName, meta.MinPlayers, meta.MaxPlayers)
	}
	if meta.RequiresTeams {
		if len(r.Teams) != meta.NumTeams {
			return errkind.New(errkind.BadRequest, "%s requires %d teams", meta.DisplayName, meta.NumTeams)
		}
		for _, team := range r.Teams {
			if len(team) != meta.PlayersPerTeam {
				return errkind.New(errkind.BadRequest, "each team needs %d players", meta.PlayersPerTeam)
			}
		}
		if err := r.validateTeams(r.Teams, true); err != nil {
			return err
		}
	}

	info := engine.RoomInfo{
		RoomID:   r.ID,
		LeaderID: r.LeaderID,
		Settings: s.engine.ValidateSettings(r.SelectedGameType, r.GameSettings[r.SelectedGameType]),
	}
	for _, u := range r.Users {
		info.Users = append(info.Users, engine.PlayerInfo{ID: u.ID, Name: u.Name})
	}
	for _, team := range r.Teams {
		info.Teams = append(info.Teams, append([]string(nil), team...))
	}

	st, err := s.engine.CreateGame(r.SelectedGameType, info)
	if err != nil {
		return err
	}

	for _, u := range r.Users {
		u.Connected = true
		u.everConnected = true
	}
	r.GameID = st.ID()
	r.lifecycle.Dispatch(stateInGame)

	s.log.Infof("room %s started %s game %s", r.ID, r.SelectedGameType, st.ID())
	s.emitRoomEvent(r, EventGameStarted, map[string]interface{}{"gameId": st.ID()})
	s.emitGameEvent(r, EventGameStarted, nil)
	s.armTurnTimer(r, st)
	return nil
}

// CloseRoom deletes the room. Leader-only.
func (s *Server) CloseRoom(roomID, byUserID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.LeaderID != byUserID {
		r.mu.Unlock()
		return errkind.New(errkind.Forbidden, "only the leader can close the room")
	}
	r.lifecycle.Dispatch(stateEnded)
	r.mu.Unlock()

	s.deleteRoom(r)
	return nil
}

// deleteRoom tears a room down: cancels timers, disposes the game, clears
// join requests, and removes the room from both indices.
func (s *Server) deleteRoom(r *Room) {
	r.mu.Lock()
	s.cancelRoomDeletion(r)
	s.cancelReconnectTimeout(r)
	if r.GameID != "" {
		s.timers.CancelTurn(r.GameID)
		s.engine.RemoveGame(r.GameID)
		r.GameID = ""
	}
	r.JoinRequests = make(map[string]*JoinRequest)
	code := r.Code
	id := r.ID
	r.mu.Unlock()

	s.mu.Lock()
	delete(s.rooms, id)
	delete(s.codes, code)
	s.mu.Unlock()
	s.log.Infof("room %s deleted", id)
}

// scheduleRoomDeletion arms the empty-room TTL timer. Skipped in dev mode.
// Callers must hold the room lock.
func (s *Server) scheduleRoomDeletion(r *Room) {
	if s.cfg.Dev {
		return
	}
	s.cancelRoomDeletion(r)
	r.deleteTimer = time.AfterFunc(s.cfg.RoomEmptyTTL, func() {
		room, err := s.room(r.ID)
		if err != nil {
			return
		}
		room.mu.RLock()
		empty := len(room.Users) == 0
		room.mu.RUnlock()
		if empty {
			s.deleteRoom(room)
		}
	})
}

// cancelRoomDeletion clears a pending TTL timer. Idempotent. Callers must
// hold the room lock.
func (s *Server) cancelRoomDeletion(r *Room) {
	if r.deleteTimer != nil {
		r.deleteTimer.Stop()
		r.deleteTimer = nil
	}
}
