// Package httpapi exposes the REST surface: room creation and joining,
// private-room join requests, room lookup by code, and game metadata.
package httpapi

import (
	"net/http"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"

	"github.com/parlorgames/parlord/pkg/errkind"
	"github.com/parlorgames/parlord/pkg/server"
)

// API wires the REST routes onto a gin engine.
type API struct {
	log slog.Logger
	srv *server.Server
}

// New creates the REST API.
func New(log slog.Logger, srv *server.Server) *API {
	return &API{log: log, srv: srv}
}

// Register installs the routes.
func (a *API) Register(r *gin.Engine) {
	r.GET("/healthz", a.health)
	r.POST("/rooms", a.createRoom)
	r.POST("/rooms/join", a.joinRoom)
	r.POST("/rooms/request-join", a.requestJoin)
	r.GET("/rooms/code/:roomCode", a.roomByCode)
	r.GET("/games", a.listGames)
	r.GET("/games/:type/settings", a.gameSettings)
}

// fail maps a categorized error onto its HTTP status with an optional
// machine code.
func (a *API) fail(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if code := errkind.CodeOf(err); code != "" {
		body["code"] = code
	}
	c.JSON(errkind.HTTPStatus(err), body)
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createRoomRequest struct {
	UserID     string `json:"userId" binding:"required"`
	UserName   string `json:"userName" binding:"required"`
	RoomName   string `json:"roomName"`
	IsPrivate  bool   `json:"isPrivate"`
	MaxPlayers int    `json:"maxPlayers"`
}

func (a *API) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, errkind.New(errkind.BadRequest, "invalid request body: %v", err))
		return
	}
	snap, err := a.srv.CreateRoom(req.UserID, req.UserName, req.RoomName, server.RoomSettings{
		IsPrivate:  req.IsPrivate,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode" binding:"required"`
	UserID   string `json:"userId" binding:"required"`
	UserName string `json:"userName" binding:"required"`
}

func (a *API) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, errkind.New(errkind.BadRequest, "invalid request body: %v", err))
		return
	}
	snap, err := a.srv.JoinRoom(req.RoomCode, req.UserID, req.UserName, false)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *API) requestJoin(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, errkind.New(errkind.BadRequest, "invalid request body: %v", err))
		return
	}
	if err := a.srv.RequestJoin(req.RoomCode, req.UserID, req.UserName); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requested": true})
}

func (a *API) roomByCode(c *gin.Context) {
	snap, err := a.srv.RoomSnapshotByCode(c.Param("roomCode"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *API) listGames(c *gin.Context) {
	c.JSON(http.StatusOK, a.srv.Registry().Metas())
}

func (a *API) gameSettings(c *gin.Context) {
	mod, ok := a.srv.Registry().Module(c.Param("type"))
	if !ok {
		a.fail(c, errkind.New(errkind.NotFound, "unknown game type %q", c.Param("type")))
		return
	}
	meta := mod.Meta()
	c.JSON(http.StatusOK, gin.H{
		"settingsDefinitions": meta.Settings,
		"defaultSettings":     meta.Defaults,
	})
}
