package server

import (
	"time"
)

// Event names pushed to clients. Room events carry a room envelope, game
// events a game envelope.
const (
	EventRoomCreated           = "room_created"
	EventUserJoined            = "user_joined"
	EventUserReconnected       = "user_reconnected"
	EventUserDisconnected      = "user_disconnected"
	EventUserLeft              = "user_left"
	EventUserKicked            = "user_kicked"
	EventLeaderPromoted        = "leader_promoted"
	EventTeamsSet              = "teams_set"
	EventUserReadyStateChanged = "user_ready_state_changed"
	EventGameSelected          = "game_selected"
	EventRoomSettingsUpdated   = "room_settings_updated"
	EventGameSettingsUpdated   = "game_settings_updated"
	EventGameStarted           = "game_started"
	EventGamePaused            = "game_paused"
	EventGameResumed           = "game_resumed"
	EventGameAborted           = "game_aborted"
	EventGameEnded             = "game_ended"
	EventSync                  = "sync"
	EventJoinRequest           = "join_request"
	EventTurnTimeout           = "turn_timeout"
	EventMovedToSpectators     = "player_moved_to_spectators"
	EventSlotClaimed           = "player_slot_claimed"
)

// Emitter is the fan-out interface the core drives. Transports implement it;
// the core invokes it synchronously after each mutation commits, so within a
// room events arrive in commit order.
type Emitter interface {
	// EmitToRoom broadcasts to every connection in the room.
	EmitToRoom(roomID, event string, payload interface{})
	// EmitToUser unicasts to the user's active connection, if any.
	EmitToUser(userID, event string, payload interface{})
}

// RoomEnvelope is the broadcast shape of room lifecycle events.
type RoomEnvelope struct {
	Event     string                 `json:"event"`
	RoomState RoomSnapshot           `json:"roomState"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// GameEnvelope is the broadcast shape of game events. Room-wide copies carry
// the public projection in GameState; per-player unicasts carry the private
// projection in PlayerState instead.
type GameEnvelope struct {
	Event       string                 `json:"event"`
	GameState   interface{}            `json:"gameState,omitempty"`
	PlayerState interface{}            `json:"playerState,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// emitRoomEvent broadcasts a room envelope. Callers must hold the room lock
// so the snapshot reflects the mutation that caused the event.
func (s *Server) emitRoomEvent(r *Room, event string, data map[string]interface{}) {
	s.emitter.EmitToRoom(r.ID, event, RoomEnvelope{
		Event:     event,
		RoomState: r.snapshot(),
		Timestamp: time.Now(),
		Data:      data,
	})
}

// emitGameEvent broadcasts the public projection to the room and unicasts
// each participant their private projection.
func (s *Server) emitGameEvent(r *Room, event string, data map[string]interface{}) {
	if r.GameID == "" {
		return
	}
	st, ok := s.engine.Game(r.GameID)
	if !ok {
		return
	}
	mod, ok := s.engine.Module(st.GameType())
	if !ok {
		return
	}

	now := time.Now()
	s.emitter.EmitToRoom(r.ID, event, GameEnvelope{
		Event:     event,
		GameState: mod.PublicState(st),
		Timestamp: now,
		Data:      data,
	})
	for _, u := range r.Users {
		if r.isSpectator(u.ID) {
			continue
		}
		s.emitter.EmitToUser(u.ID, event, GameEnvelope{
			Event:       event,
			PlayerState: mod.PlayerState(st, u.ID),
			Timestamp:   now,
			Data:        data,
		})
	}
}
