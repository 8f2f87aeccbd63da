package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/parlorgames/parlord/pkg/dominoes"
	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/errkind"
	"github.com/parlorgames/parlord/pkg/server"
	"github.com/parlorgames/parlord/pkg/spades"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is delegated to the deployment's reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler bridges WebSocket connections into the room server.
type Handler struct {
	log slog.Logger
	hub *Hub
	srv *server.Server
}

// NewHandler creates the WebSocket handler.
func NewHandler(log slog.Logger, hub *Hub, srv *server.Server) *Handler {
	return &Handler{log: log, hub: hub, srv: srv}
}

// ServeHTTP upgrades the connection and runs its read loop until close.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugf("upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The first frame must be the handshake naming the room and user.
	var hello inbound
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != msgHandshake ||
		hello.RoomID == "" || hello.UserID == "" {
		conn.WriteJSON(errorReply{Event: "error", Error: "expected handshake with roomId and userId"})
		conn.Close()
		return
	}

	// Join the hub before registering so the reconnect sync emitted during
	// registration lands in this client's buffer too; the write pump starts
	// once registration succeeds and drains it in order.
	c := newClient(uuid.NewString(), hello.RoomID, hello.UserID, conn)
	h.hub.add(c)

	oldSocket, err := h.srv.RegisterConn(c.id, c.roomID, c.userID)
	if err != nil {
		h.hub.remove(c)
		conn.WriteJSON(errorReply{Event: "error", Error: err.Error(), Code: errkind.CodeOf(err)})
		c.close()
		return
	}
	go c.writePump()
	if oldSocket != "" {
		// The new connection wins; terminate the superseded one.
		if old := h.hub.client(oldSocket); old != nil {
			old.close()
		}
		h.srv.DisconnectSocket(oldSocket)
	}

	h.readLoop(c)

	h.hub.remove(c)
	h.srv.DisconnectSocket(c.id)
	c.close()
}

// readLoop processes inbound frames until the connection drops.
func (h *Handler) readLoop(c *Client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugf("socket %s read error: %v", c.id, err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.replyError(c, errkind.New(errkind.BadRequest, "malformed message"))
			continue
		}
		if err := h.route(c, msg); err != nil {
			h.replyError(c, err)
		}
	}
}

func (h *Handler) replyError(c *Client, err error) {
	data, merr := json.Marshal(errorReply{Event: "error", Error: err.Error(), Code: errkind.CodeOf(err)})
	if merr != nil {
		return
	}
	c.enqueue(data)
}

// route dispatches one inbound frame to the matching server operation. The
// acting user is always the handshaken one, never a field of the message.
func (h *Handler) route(c *Client, msg inbound) error {
	switch msg.Type {
	case msgToggleReady:
		ready := true
		if msg.Ready != nil {
			ready = *msg.Ready
		}
		return h.srv.SetReady(c.roomID, c.userID, ready)
	case msgKickUser:
		socketID, err := h.srv.KickUser(c.roomID, c.userID, msg.TargetUserID)
		if err != nil {
			return err
		}
		if socketID != "" {
			if kicked := h.hub.client(socketID); kicked != nil {
				kicked.close()
			}
		}
		return nil
	case msgPromoteLeader:
		return h.srv.PromoteLeader(c.roomID, c.userID, msg.TargetUserID)
	case msgStartGame:
		return h.srv.StartGame(c.roomID, c.userID)
	case msgCloseRoom:
		return h.srv.CloseRoom(c.roomID, c.userID)
	case msgLeaveGame:
		return h.srv.LeaveGame(c.roomID, c.userID)
	case msgAbortGame:
		return h.srv.AbortGame(c.roomID, c.userID)
	case msgClaimSlot:
		return h.srv.ClaimSlot(c.roomID, c.userID, msg.TargetUserID)
	case msgAcceptJoin:
		_, err := h.srv.AcceptJoin(c.roomID, c.userID, msg.TargetUserID)
		return err
	case msgRejectJoin:
		return h.srv.RejectJoin(c.roomID, c.userID, msg.TargetUserID)
	case msgUpdateRoomSettings:
		settings := server.RoomSettings{}
		if msg.IsPrivate != nil {
			settings.IsPrivate = *msg.IsPrivate
		}
		if msg.MaxPlayers != nil {
			settings.MaxPlayers = *msg.MaxPlayers
		}
		return h.srv.UpdateRoomSettings(c.roomID, c.userID, settings)
	case msgUpdateGameSettings:
		return h.srv.UpdateGameSettings(c.roomID, c.userID, msg.GameType, msg.Settings)
	case msgSetTeams:
		return h.srv.SetTeams(c.roomID, c.userID, msg.Teams)
	case msgRandomizeTeams:
		return h.srv.RandomizeTeams(c.roomID, c.userID)
	case msgSelectGame:
		return h.srv.SelectGame(c.roomID, c.userID, msg.GameType)

	case msgPlaceBid:
		return h.srv.DispatchAction(c.roomID, c.userID, spades.PlaceBid{
			UserID:  c.userID,
			Amount:  msg.Amount,
			BidType: spades.BidType(msg.BidType),
		})
	case msgPlayCard:
		if msg.Card == nil {
			return errkind.New(errkind.BadRequest, "playCard requires a card")
		}
		return h.srv.DispatchAction(c.roomID, c.userID, spades.PlayCard{
			UserID: c.userID,
			Card:   *msg.Card,
		})
	case msgPlaceTile:
		return h.srv.DispatchAction(c.roomID, c.userID, dominoes.PlaceTile{
			UserID: c.userID,
			TileID: msg.TileID,
			Side:   dominoes.Side(msg.Side),
		})
	case msgPass:
		return h.srv.DispatchAction(c.roomID, c.userID, dominoes.Pass{UserID: c.userID})
	case msgContinueAfterTrickResult:
		return h.srv.DispatchAction(c.roomID, c.userID, engine.ContinueAfterTrickResult{UserID: c.userID})
	case msgContinueAfterRoundSummary:
		return h.srv.DispatchAction(c.roomID, c.userID, engine.ContinueAfterRoundSummary{UserID: c.userID})

	default:
		return errkind.New(errkind.BadRequest, "unknown message type %q", msg.Type)
	}
}
