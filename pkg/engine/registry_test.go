package engine

import (
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorgames/parlord/pkg/errkind"
)

// counterState is a minimal game state for registry tests.
type counterState struct {
	Base
	Count int
}

func (s *counterState) Clone() State {
	next := &counterState{Count: s.Count}
	s.CloneBase(&next.Base)
	return next
}

type bump struct{ UserID string }

func (bump) Kind() ActionKind { return "BUMP" }
func (a bump) Actor() string  { return a.UserID }

type boom struct{ UserID string }

func (boom) Kind() ActionKind { return "BOOM" }
func (a boom) Actor() string  { return a.UserID }

// counterModule increments on bump and fails on boom.
type counterModule struct{}

func (counterModule) Meta() Meta {
	return Meta{
		Type:        "counter",
		DisplayName: "Counter",
		MinPlayers:  1,
		MaxPlayers:  4,
		Settings:    []SettingDef{{Key: "limit", Type: SettingNumber, Default: float64(10)}},
		Defaults:    Settings{"limit": float64(10)},
	}
}

func (counterModule) Init(room RoomInfo) (State, error) {
	st := &counterState{}
	st.GameID = NewGameID()
	st.RoomID = room.RoomID
	st.Type = "counter"
	st.Settings = room.Settings.Clone()
	st.Players = make(map[string]*PlayerInfo)
	for _, u := range room.Users {
		cp := u
		st.Players[u.ID] = &cp
	}
	return st, nil
}

func (counterModule) Reduce(raw State, act Action) (State, error) {
	st := raw.(*counterState)
	switch act.(type) {
	case bump:
		next := st.Clone().(*counterState)
		next.Count++
		return next, nil
	default:
		return nil, errkind.New(errkind.BadRequest, "counter does not handle %s", act.Kind())
	}
}

func (counterModule) PublicState(st State) interface{}                { return st }
func (counterModule) PlayerState(st State, userID string) interface{} { return st }
func (counterModule) CheckMinimumPlayers(State) bool                  { return true }
func (counterModule) HandleDisconnect(st State, userID string) State  { return st }
func (counterModule) HandleReconnect(st State, userID string) State   { return st }
func (counterModule) HandleLeave(st State, userID string) State       { return st }
func (counterModule) TransferSlot(st State, _, _, _ string) (State, error) {
	return st, nil
}
func (counterModule) CurrentTurn(State) (string, int, bool) { return "", 0, false }
func (counterModule) AutoAction(State) Action               { return nil }

func newTestRegistry() *Registry {
	r := NewRegistry(slog.Disabled)
	r.RegisterModule(counterModule{})
	return r
}

func TestRegistryCreateAndDispatch(t *testing.T) {
	r := newTestRegistry()

	st, err := r.CreateGame("counter", RoomInfo{RoomID: "room1", Users: []PlayerInfo{{ID: "U1"}}})
	require.NoError(t, err)

	next, err := r.Dispatch(st.ID(), bump{UserID: "U1"})
	require.NoError(t, err)
	assert.Equal(t, 1, next.(*counterState).Count)

	// The committed state is the new one.
	got, ok := r.Game(st.ID())
	require.True(t, ok)
	assert.Equal(t, 1, got.(*counterState).Count)
}

func TestRegistryDispatchFailureLeavesStateUntouched(t *testing.T) {
	r := newTestRegistry()
	st, err := r.CreateGame("counter", RoomInfo{RoomID: "room1"})
	require.NoError(t, err)
	_, err = r.Dispatch(st.ID(), bump{UserID: "U1"})
	require.NoError(t, err)

	_, err = r.Dispatch(st.ID(), boom{UserID: "U1"})
	require.Error(t, err)

	got, _ := r.Game(st.ID())
	cs := got.(*counterState)
	assert.Equal(t, 1, cs.Count, "failed dispatch must not mutate")
	assert.Len(t, cs.History, 1, "failed dispatch must not append history")
}

func TestRegistryHistoryOrder(t *testing.T) {
	r := newTestRegistry()
	st, err := r.CreateGame("counter", RoomInfo{RoomID: "room1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := r.Dispatch(st.ID(), bump{UserID: "U1"})
		require.NoError(t, err)
	}
	got, _ := r.Game(st.ID())
	hist := got.(*counterState).History
	require.Len(t, hist, 3)
	for i, e := range hist {
		assert.Equal(t, i+1, e.Seq)
		assert.Equal(t, ActionKind("BUMP"), e.Action)
		assert.Equal(t, "U1", e.Actor)
	}
}

func TestRegistryUnknownGameAndType(t *testing.T) {
	r := newTestRegistry()

	_, err := r.CreateGame("chess", RoomInfo{})
	require.Error(t, err)

	_, err = r.Dispatch("game_missing", bump{UserID: "U1"})
	require.Error(t, err)
	assert.Equal(t, errkind.NotFound, errkind.KindOf(err))
}

func TestRegistryRemoveGame(t *testing.T) {
	r := newTestRegistry()
	st, err := r.CreateGame("counter", RoomInfo{RoomID: "room1"})
	require.NoError(t, err)

	r.RemoveGame(st.ID())
	_, ok := r.Game(st.ID())
	assert.False(t, ok)

	// Removing again is a no-op.
	r.RemoveGame(st.ID())
}

func TestRegistryValidateSettingsUnknownTypePassthrough(t *testing.T) {
	r := newTestRegistry()
	in := map[string]interface{}{"anything": 1}
	out := r.ValidateSettings("chess", in)
	assert.Equal(t, Settings(in), out)

	out = r.ValidateSettings("counter", map[string]interface{}{"limit": float64(3), "junk": true})
	assert.Equal(t, float64(3), out["limit"])
	_, ok := out["junk"]
	assert.False(t, ok)
}

func TestRegistryMetasSorted(t *testing.T) {
	r := newTestRegistry()
	metas := r.Metas()
	require.Len(t, metas, 1)
	assert.Equal(t, "counter", metas[0].Type)
}
