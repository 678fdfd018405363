package controllers

import (
	"context"
	"github.com/adamlounds/diacates-go/middleware"
	"github.com/adamlounds/diacates-go/models"
	socketio "github.com/googollee/go-socket.io"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"net/http"
)

// EventEntriesChanged tells a browser to reload its entry list.
const EventEntriesChanged = "entriesChanged"

type SocketController struct {
	Context context.Context
	SockSvr *socketio.Server
	Authn   AuthnMiddleware
}

// socketState is kept on each connection.
type socketState struct {
	Authn *models.Authn
}

func userRoom(userID string) string {
	return "user:" + userID
}

// authnFromHeader reads the session cookie the browser sent with the
// handshake.
func (c SocketController) authnFromHeader(header http.Header) *models.Authn {
	r := &http.Request{Header: header}
	token, err := middleware.TokenFromRequest(r)
	if err != nil {
		return models.AnonymousAuthn()
	}
	return c.Authn.AuthnFromToken(c.Context, token)
}

// OnConnect authorises the connection from its session cookie. Signed-in
// connections join their user's room, anonymous ones stay connected but
// never receive updates.
func (c SocketController) OnConnect(s socketio.Conn) error {
	log := slogctx.FromCtx(c.Context)
	authn := c.authnFromHeader(s.RemoteHeader())
	s.SetContext(&socketState{Authn: authn})

	if authn.Status() == models.SessionAuthenticated {
		s.Join(userRoom(authn.AuthSubject.ID))
	}
	log.Debug("socket connection made",
		slog.String("connId", s.ID()),
		slog.Any("authn", authn),
	)
	return nil
}

func connAuthn(s socketio.Conn) *models.Authn {
	state, ok := s.Context().(*socketState)
	if !ok || state.Authn == nil {
		return &models.Authn{AuthSubject: nil}
	}
	return state.Authn
}

// Authorize replies with what the connection may do. A connection whose
// handshake has not been processed yet reports the loading status.
func (c SocketController) Authorize(s socketio.Conn, msg map[string]any) map[string]any {
	ctx := c.Context
	log := slogctx.FromCtx(ctx)
	authn := connAuthn(s)

	status := authn.Status()
	if authn.AuthSubject == nil {
		status = models.SessionLoading
	}
	perms := map[string]bool{
		"read":   c.Authn.IsPermitted(ctx, authn, "api:entries:read"),
		"write":  c.Authn.IsPermitted(ctx, authn, "api:entries:create"),
		"delete": c.Authn.IsPermitted(ctx, authn, "api:entries:delete"),
	}
	log.Debug("socket event: authorize",
		slog.String("connId", s.ID()),
		slog.String("status", string(status)),
	)
	return map[string]any{"status": status, "permissions": perms}
}

// EntriesChanged pushes a reload hint to every connection of the user.
func (c SocketController) EntriesChanged(ctx context.Context, userID string) {
	log := slogctx.FromCtx(ctx)
	if c.SockSvr == nil {
		return
	}
	ok := c.SockSvr.BroadcastToRoom("/", userRoom(userID), EventEntriesChanged)
	log.Debug("broadcast entriesChanged", slog.String("userID", userID), slog.Bool("ok", ok))
}

func (c SocketController) OnError(s socketio.Conn, e error) {
	log := slogctx.FromCtx(c.Context)
	if s == nil {
		log.Warn("socket error", slog.Any("error", e))
		return
	}
	log.Warn("socket error", slog.String("connId", s.ID()), slog.Any("error", e))
}

func (c SocketController) OnDisconnect(s socketio.Conn, reason string) {
	log := slogctx.FromCtx(c.Context)
	log.Debug("socket closed", slog.String("connId", s.ID()), slog.String("reason", reason))
}

// Register wires the handlers onto the default namespace.
func (c SocketController) Register() {
	c.SockSvr.OnConnect("/", c.OnConnect)
	c.SockSvr.OnEvent("/", "authorize", c.Authorize)
	c.SockSvr.OnError("/", c.OnError)
	c.SockSvr.OnDisconnect("/", c.OnDisconnect)
}
