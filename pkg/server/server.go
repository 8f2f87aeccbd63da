// Package server implements the realtime room server: room lifecycle and
// membership, connection tracking with reconnect orchestration, private-room
// join requests, turn timers, and ordered event fan-out over a pluggable
// transport.
package server

import (
	"crypto/rand"
	"math/big"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
)

// SocketRef resolves a socket id back to its room and user.
type SocketRef struct {
	RoomID string
	UserID string
}

// Server owns every live room plus the global indices: rooms by id, rooms by
// join code, and the socket/user mappings. The indices are guarded by mu; each
// room guards its own fields. Lock order is Server.mu before Room.mu, never
// the reverse.
type Server struct {
	log     slog.Logger
	cfg     Config
	engine  *engine.Registry
	emitter Emitter
	timers  *TurnTimers

	mu           sync.RWMutex
	rooms        map[string]*Room
	codes        map[string]string
	socketToUser map[string]SocketRef
	userToSocket map[string]string
}

// New creates a server. The emitter may be swapped later via SetEmitter so
// transports constructed after the server can attach.
func New(log slog.Logger, cfg Config, registry *engine.Registry, emitter Emitter) *Server {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Server{
		log:          log,
		cfg:          cfg,
		engine:       registry,
		emitter:      emitter,
		timers:       NewTurnTimers(log, cfg.TurnTimerGrace),
		rooms:        make(map[string]*Room),
		codes:        make(map[string]string),
		socketToUser: make(map[string]SocketRef),
		userToSocket: make(map[string]string),
	}
}

// SetEmitter replaces the fan-out target.
func (s *Server) SetEmitter(e Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitter = e
}

// Registry exposes the game registry for transports serving metadata routes.
func (s *Server) Registry() *engine.Registry { return s.engine }

// Timers exposes the turn timer service.
func (s *Server) Timers() *TurnTimers { return s.timers }

// nopEmitter swallows events until a transport attaches.
type nopEmitter struct{}

func (nopEmitter) EmitToRoom(string, string, interface{}) {}
func (nopEmitter) EmitToUser(string, string, interface{}) {}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomCode draws a 6-character code, retrying on collision with live
// codes. Callers must hold s.mu.
func (s *Server) newRoomCode() string {
	for {
		buf := make([]byte, 6)
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
			if err != nil {
				// crypto/rand failing is unrecoverable for code generation.
				panic(err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		code := string(buf)
		if _, taken := s.codes[code]; !taken {
			return code
		}
	}
}

func newRoomID() string { return "room_" + uuid.NewString() }

// normalizeCode uppercases a join code so lookup is case-insensitive.
func normalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// room resolves a room by id.
func (s *Server) room(roomID string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "room %s not found", roomID)
	}
	return r, nil
}

// roomByCode resolves a room by its join code, uppercasing the input first.
func (s *Server) roomByCode(code string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[normalizeCode(code)]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "no room with code %s", normalizeCode(code))
	}
	return s.rooms[id], nil
}

// RoomSnapshotByCode returns the public view of the room with the given code.
func (s *Server) RoomSnapshotByCode(code string) (RoomSnapshot, error) {
	r, err := s.roomByCode(code)
	if err != nil {
		return RoomSnapshot{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(), nil
}

// RoomSnapshot returns the public view of the room with the given id.
func (s *Server) RoomSnapshot(roomID string) (RoomSnapshot, error) {
	r, err := s.room(roomID)
	if err != nil {
		return RoomSnapshot{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(), nil
}
