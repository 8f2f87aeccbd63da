package ws

import (
	"github.com/parlorgames/parlord/pkg/cards"
)

// Inbound message types. The first frame on every connection must be a
// handshake; everything after routes to the matching server operation.
const (
	msgHandshake = "handshake"

	msgToggleReady        = "toggleReady"
	msgKickUser           = "kickUser"
	msgPromoteLeader      = "promoteLeader"
	msgStartGame          = "startGame"
	msgCloseRoom          = "closeRoom"
	msgLeaveGame          = "leaveGame"
	msgAbortGame          = "abortGame"
	msgClaimSlot          = "claimSlot"
	msgAcceptJoin         = "acceptJoin"
	msgRejectJoin         = "rejectJoin"
	msgUpdateRoomSettings = "updateRoomSettings"
	msgUpdateGameSettings = "updateGameSettings"
	msgSetTeams           = "setTeams"
	msgRandomizeTeams     = "randomizeTeams"
	msgSelectGame         = "selectGame"

	msgPlaceBid                  = "placeBid"
	msgPlayCard                  = "playCard"
	msgPlaceTile                 = "placeTile"
	msgPass                      = "pass"
	msgContinueAfterTrickResult  = "continueAfterTrickResult"
	msgContinueAfterRoundSummary = "continueAfterRoundSummary"
)

// inbound is the wire shape of every client frame.
type inbound struct {
	Type string `json:"type"`

	// Handshake.
	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId,omitempty"`

	// Lobby operations.
	TargetUserID string                 `json:"targetUserId,omitempty"`
	GameType     string                 `json:"gameType,omitempty"`
	Teams        [][]string             `json:"teams,omitempty"`
	Settings     map[string]interface{} `json:"settings,omitempty"`
	IsPrivate    *bool                  `json:"isPrivate,omitempty"`
	MaxPlayers   *int                   `json:"maxPlayers,omitempty"`
	Ready        *bool                  `json:"ready,omitempty"`

	// Game actions.
	Amount  int         `json:"amount,omitempty"`
	BidType string      `json:"bidType,omitempty"`
	Card    *cards.Card `json:"card,omitempty"`
	TileID  string      `json:"tileId,omitempty"`
	Side    string      `json:"side,omitempty"`
}

// errorReply is the socket-level error frame.
type errorReply struct {
	Event string `json:"event"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
