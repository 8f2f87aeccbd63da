package server

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorgames/parlord/pkg/dominoes"
	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
	"github.com/parlorgames/parlord/pkg/spades"
)

// recEmitter records emitted events for assertions.
type recEmitter struct {
	mu     sync.Mutex
	room   []string
	user   []string
	target []string
}

func (e *recEmitter) EmitToRoom(roomID, event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.room = append(e.room, event)
	e.target = append(e.target, roomID)
}

func (e *recEmitter) EmitToUser(userID, event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.user = append(e.user, event)
}

func (e *recEmitter) roomEvents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.room...)
}

func (e *recEmitter) hasRoomEvent(event string) bool {
	for _, ev := range e.roomEvents() {
		if ev == event {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, mut func(*Config)) (*Server, *recEmitter) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dev = true
	cfg.TurnTimerGrace = 0
	if mut != nil {
		mut(&cfg)
	}

	reg := engine.NewRegistry(slog.Disabled)
	reg.RegisterModule(spades.New())
	reg.RegisterModule(dominoes.New())

	em := &recEmitter{}
	return New(slog.Disabled, cfg, reg, em), em
}

// startedSpadesRoom creates a room with four ready users, teams set, and a
// spades game running, with one socket registered per user.
func startedSpadesRoom(t *testing.T, s *Server) RoomSnapshot {
	t.Helper()
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)

	for _, u := range [][2]string{{"U2", "Bob"}, {"U3", "Carol"}, {"U4", "Dave"}} {
		_, err := s.JoinRoom(snap.Code, u[0], u[1], false)
		require.NoError(t, err)
	}
	require.NoError(t, s.SelectGame(snap.ID, "U1", "spades"))
	require.NoError(t, s.SetTeams(snap.ID, "U1", [][]string{{"U1", "U3"}, {"U2", "U4"}}))
	for _, id := range []string{"U1", "U2", "U3", "U4"} {
		require.NoError(t, s.SetReady(snap.ID, id, true))
	}
	require.NoError(t, s.StartGame(snap.ID, "U1"))

	for i, id := range []string{"U1", "U2", "U3", "U4"} {
		_, err := s.RegisterConn("S"+string(rune('1'+i)), snap.ID, id)
		require.NoError(t, err)
	}

	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	return out
}

func TestCreateAndJoinRoom(t *testing.T) {
	s, em := newTestServer(t, nil)

	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)
	assert.Len(t, snap.Code, 6)
	assert.Equal(t, "U1", snap.LeaderID)
	assert.Equal(t, RoomStateLobby, snap.State)

	// Codes are case-insensitive on lookup.
	joined, err := s.JoinRoom(strings.ToLower(snap.Code), "U2", "Bob", false)
	require.NoError(t, err)
	assert.Len(t, joined.Users, 2)
	assert.False(t, joined.ReadyStates["U2"])

	// Re-joining returns the room unchanged.
	again, err := s.JoinRoom(snap.Code, "U2", "Bob", false)
	require.NoError(t, err)
	assert.Len(t, again.Users, 2)

	assert.True(t, em.hasRoomEvent(EventRoomCreated))
	assert.True(t, em.hasRoomEvent(EventUserJoined))
}

func TestJoinPrivateRoom(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{IsPrivate: true})
	require.NoError(t, err)

	_, err = s.JoinRoom(snap.Code, "U2", "Bob", false)
	require.Error(t, err)
	assert.Equal(t, errkind.Forbidden, errkind.KindOf(err))
	assert.Equal(t, errkind.CodePrivateRoom, errkind.CodeOf(err))

	// The accept path bypasses the private check.
	require.NoError(t, s.RequestJoin(snap.Code, "U2", "Bob"))
	joined, err := s.AcceptJoin(snap.ID, "U1", "U2")
	require.NoError(t, err)
	assert.Len(t, joined.Users, 2)
}

func TestJoinRoomFullAndKicked(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{MaxPlayers: 2})
	require.NoError(t, err)
	_, err = s.JoinRoom(snap.Code, "U2", "Bob", false)
	require.NoError(t, err)
	_, err = s.JoinRoom(snap.Code, "U3", "Carol", false)
	require.Error(t, err, "room beyond maxPlayers")

	// Kicked users cannot rejoin.
	_, err = s.KickUser(snap.ID, "U1", "U2")
	require.NoError(t, err)
	_, err = s.JoinRoom(snap.Code, "U2", "Bob", false)
	require.Error(t, err)
}

func TestJoinRequestRateLimits(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.JoinRequestCooldown = 10 * time.Millisecond
		c.JoinRequestMaxAttempts = 2
	})
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{IsPrivate: true})
	require.NoError(t, err)

	require.NoError(t, s.RequestJoin(snap.Code, "U2", "Bob"))

	// Second request inside the cooldown is rejected.
	err = s.RequestJoin(snap.Code, "U2", "Bob")
	require.Error(t, err)

	// Rejection preserves the attempt counter.
	require.NoError(t, s.RejectJoin(snap.ID, "U1", "U2"))
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, s.RequestJoin(snap.Code, "U2", "Bob"))

	// Attempt cap reached.
	time.Sleep(15 * time.Millisecond)
	err = s.RequestJoin(snap.Code, "U2", "Bob")
	require.Error(t, err)
}

func TestStartGamePreconditions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)
	for _, u := range [][2]string{{"U2", "Bob"}, {"U3", "Carol"}, {"U4", "Dave"}} {
		_, err := s.JoinRoom(snap.Code, u[0], u[1], false)
		require.NoError(t, err)
	}
	require.NoError(t, s.SelectGame(snap.ID, "U1", "spades"))
	require.NoError(t, s.SetTeams(snap.ID, "U1", [][]string{{"U1", "U3"}, {"U2", "U4"}}))

	// Not everyone ready.
	require.Error(t, s.StartGame(snap.ID, "U1"))
	for _, id := range []string{"U1", "U2", "U3", "U4"} {
		require.NoError(t, s.SetReady(snap.ID, id, true))
	}

	// Non-leader cannot start.
	require.Error(t, s.StartGame(snap.ID, "U2"))

	require.NoError(t, s.StartGame(snap.ID, "U1"))
	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, RoomStateInGame, out.State)
	assert.NotEmpty(t, out.GameID)

	// Starting twice fails.
	require.Error(t, s.StartGame(snap.ID, "U1"))
}

func TestTeamsValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)
	_, err = s.JoinRoom(snap.Code, "U2", "Bob", false)
	require.NoError(t, err)

	// Partial teams are fine for edits.
	require.NoError(t, s.SetTeams(snap.ID, "U1", [][]string{{"U1", EmptySlot}, {"U2", EmptySlot}}))

	// Duplicates rejected.
	require.Error(t, s.SetTeams(snap.ID, "U1", [][]string{{"U1", "U1"}, {EmptySlot, EmptySlot}}))

	// Non-members rejected.
	require.Error(t, s.SetTeams(snap.ID, "U1", [][]string{{"U9", EmptySlot}, {EmptySlot, EmptySlot}}))

	// Only the leader edits teams.
	require.Error(t, s.SetTeams(snap.ID, "U2", [][]string{{"U1", EmptySlot}, {"U2", EmptySlot}}))
}

func TestDuplicateConnectionNewSocketWins(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)

	old, err := s.RegisterConn("S1", snap.ID, "U1")
	require.NoError(t, err)
	assert.Empty(t, old)

	old, err = s.RegisterConn("S2", snap.ID, "U1")
	require.NoError(t, err)
	assert.Equal(t, "S1", old, "caller must be told to close the old socket")

	// The close of the superseded socket must not remove the user.
	s.DisconnectSocket("S1")
	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	require.Len(t, out.Users, 1)
	assert.True(t, out.Users[0].Connected)

	// Dropping the live socket does remove the lobby user.
	s.DisconnectSocket("S2")
	out, err = s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.Empty(t, out.Users)
}

func TestSocketInSecondRoomDisconnectsFromFirst(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	// U2 joins a second room and attaches a socket there. The socket held in
	// the first room is evicted and that room sees the disconnect.
	other, err := s.CreateRoom("U9", "Zoe", "annex", RoomSettings{})
	require.NoError(t, err)
	_, err = s.JoinRoom(other.Code, "U2", "Bob", false)
	require.NoError(t, err)

	old, err := s.RegisterConn("SA", other.ID, "U2")
	require.NoError(t, err)
	assert.Equal(t, "S2", old, "caller must be told to close the socket from the first room")

	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	for _, u := range out.Users {
		if u.ID == "U2" {
			assert.False(t, u.Connected, "no live socket remains in the first room")
		}
	}
	assert.True(t, out.IsPaused, "the first room dropped below minimum")

	// The late close of the evicted socket changes nothing further.
	s.DisconnectSocket("S2")
	again, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	require.Len(t, again.Users, 4)
	assert.True(t, again.IsPaused)
}

func TestRegisterConnRejectionLeavesIndicesIntact(t *testing.T) {
	s, _ := newTestServer(t, nil)
	a, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)
	b, err := s.CreateRoom("U2", "Bob", "annex", RoomSettings{})
	require.NoError(t, err)

	_, err = s.RegisterConn("S1", a.ID, "U1")
	require.NoError(t, err)

	// U1 is not a member of the second room; the attempt changes nothing.
	_, err = s.RegisterConn("SX", b.ID, "U1")
	require.Error(t, err)
	s.mu.RLock()
	_, stray := s.socketToUser["SX"]
	live := s.userToSocket["U1"]
	s.mu.RUnlock()
	assert.False(t, stray, "a rejected registration must not be indexed")
	assert.Equal(t, "S1", live, "the existing socket must stay installed")

	// The original socket still drives the first room's roster.
	s.DisconnectSocket("S1")
	out, err := s.RoomSnapshot(a.ID)
	require.NoError(t, err)
	assert.Empty(t, out.Users)
}

func TestDisconnectDuringGamePausesAndReconnectResumes(t *testing.T) {
	s, em := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	s.DisconnectSocket("S2")
	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.True(t, out.IsPaused)
	require.NotNil(t, out.TimeoutAt)
	assert.True(t, em.hasRoomEvent(EventGamePaused))

	// The user stays on the roster as a reconnect candidate.
	require.Len(t, out.Users, 4)

	_, err = s.RegisterConn("S2b", snap.ID, "U2")
	require.NoError(t, err)
	out, err = s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.False(t, out.IsPaused)
	assert.Nil(t, out.TimeoutAt)
	assert.True(t, em.hasRoomEvent(EventGameResumed))
}

func TestReconnectTimeoutAbortsGame(t *testing.T) {
	s, em := newTestServer(t, func(c *Config) {
		c.ReconnectTimeout = 20 * time.Millisecond
	})
	snap := startedSpadesRoom(t, s)

	s.DisconnectSocket("S3")
	assert.Eventually(t, func() bool {
		out, err := s.RoomSnapshot(snap.ID)
		return err == nil && out.State == RoomStateLobby && out.GameID == ""
	}, time.Second, 5*time.Millisecond)
	assert.True(t, em.hasRoomEvent(EventGameAborted))
}

func TestLeaderDisconnectPromotesDuringGame(t *testing.T) {
	s, em := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	s.DisconnectSocket("S1")
	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "U1", out.LeaderID)
	assert.True(t, em.hasRoomEvent(EventLeaderPromoted))
}

func TestDispatchActionValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	st, ok := s.Registry().Game(snap.GameID)
	require.True(t, ok)
	sp := st.(*spades.State)
	bidder := sp.CurrentUserID()

	// A caller cannot submit an action naming someone else as the actor.
	other := "U1"
	if bidder == "U1" {
		other = "U2"
	}
	err := s.DispatchAction(snap.ID, other,
		spades.PlaceBid{UserID: bidder, Amount: 3, BidType: spades.BidNormal})
	require.Error(t, err)

	// Legal bid from the current bidder.
	require.NoError(t, s.DispatchAction(snap.ID, bidder,
		spades.PlaceBid{UserID: bidder, Amount: 3, BidType: spades.BidNormal}))

	// Actions are rejected while paused.
	s.DisconnectSocket("S4")
	st, _ = s.Registry().Game(snap.GameID)
	next := st.(*spades.State).CurrentUserID()
	err = s.DispatchAction(snap.ID, next,
		spades.PlaceBid{UserID: next, Amount: 3, BidType: spades.BidNormal})
	require.Error(t, err)
}

func TestLeaveGameMovesToSpectators(t *testing.T) {
	s, em := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	require.NoError(t, s.LeaveGame(snap.ID, "U4"))
	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.Contains(t, out.Spectators, "U4")
	assert.NotContains(t, out.ReadyStates, "U4", "spectators carry no ready state")
	assert.True(t, out.IsPaused, "a left seat drops the game below minimum")
	assert.True(t, em.hasRoomEvent(EventMovedToSpectators))
}

func TestPausedGameJoinerHasNoReadyState(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	s.DisconnectSocket("S3")
	joined, err := s.JoinRoom(snap.Code, "U5", "Erin", false)
	require.NoError(t, err)
	assert.Contains(t, joined.Spectators, "U5")
	assert.NotContains(t, joined.ReadyStates, "U5", "spectators carry no ready state")
	require.Error(t, s.SetReady(snap.ID, "U5", true))

	// Back in the lobby the former spectator is a full member again.
	require.NoError(t, s.AbortGame(snap.ID, "U1"))
	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.Contains(t, out.ReadyStates, "U5")
	require.NoError(t, s.SetReady(snap.ID, "U5", true))
}

func TestLobbyPromotionTakesFirstRemainingUser(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)
	// U2 joined over HTTP and never attached a socket.
	_, err = s.JoinRoom(snap.Code, "U2", "Bob", false)
	require.NoError(t, err)
	_, err = s.JoinRoom(snap.Code, "U3", "Carol", false)
	require.NoError(t, err)

	_, err = s.RegisterConn("S1", snap.ID, "U1")
	require.NoError(t, err)
	_, err = s.RegisterConn("S3", snap.ID, "U3")
	require.NoError(t, err)

	s.DisconnectSocket("S1")
	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "U2", out.LeaderID, "lobby promotion follows join order")
}

func TestFirstAttachIsNotAReconnect(t *testing.T) {
	s, em := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)

	_, err = s.RegisterConn("S1", snap.ID, "U1")
	require.NoError(t, err)
	assert.False(t, em.hasRoomEvent(EventUserReconnected), "a first attach is not a reconnect")
	assert.True(t, em.hasRoomEvent(EventSync))
}

func TestReturnAfterDisconnectAnnouncesReconnect(t *testing.T) {
	s, em := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)
	assert.False(t, em.hasRoomEvent(EventUserReconnected))

	s.DisconnectSocket("S2")
	_, err := s.RegisterConn("S2b", snap.ID, "U2")
	require.NoError(t, err)
	assert.True(t, em.hasRoomEvent(EventUserReconnected))
}

func TestClaimSlotResumesGame(t *testing.T) {
	s, em := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	// U4 leaves for good; U5 joins the paused room and claims the seat.
	require.NoError(t, s.LeaveGame(snap.ID, "U4"))
	_, err := s.JoinRoom(snap.Code, "U5", "Erin", false)
	require.NoError(t, err)
	require.NoError(t, s.ClaimSlot(snap.ID, "U5", "U4"))

	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.False(t, out.IsPaused)
	assert.NotContains(t, out.Spectators, "U5")
	assert.True(t, em.hasRoomEvent(EventSlotClaimed))

	st, ok := s.Registry().Game(snap.GameID)
	require.True(t, ok)
	sp := st.(*spades.State)
	assert.Contains(t, sp.PlayOrder, "U5")
	assert.NotContains(t, sp.PlayOrder, "U4")
}

func TestCloseRoomClearsIndices(t *testing.T) {
	s, _ := newTestServer(t, nil)
	snap, err := s.CreateRoom("U1", "Alice", "table", RoomSettings{})
	require.NoError(t, err)

	require.Error(t, s.CloseRoom(snap.ID, "U2"), "non-leader close")
	require.NoError(t, s.CloseRoom(snap.ID, "U1"))

	_, err = s.RoomSnapshot(snap.ID)
	require.Error(t, err)
	_, err = s.RoomSnapshotByCode(snap.Code)
	require.Error(t, err)
}

func TestKickDuringGameAbortsBelowMinimum(t *testing.T) {
	s, em := newTestServer(t, nil)
	snap := startedSpadesRoom(t, s)

	_, err := s.KickUser(snap.ID, "U1", "U3")
	require.NoError(t, err)

	out, err := s.RoomSnapshot(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, RoomStateLobby, out.State)
	assert.Empty(t, out.GameID)
	assert.True(t, em.hasRoomEvent(EventGameAborted))
	assert.True(t, em.hasRoomEvent(EventUserKicked))
}
