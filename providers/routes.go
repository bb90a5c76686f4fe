package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/socialnet/socket/src/auth"
	"github.com/socialnet/socket/src/hub"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Handler returns the root fasthttp handler: the WebSocket endpoint, the
// metrics endpoint and the fiber routes.
func (s *Server) Handler() fasthttp.RequestHandler {
	app := s.app.Handler()

	var prom fasthttp.RequestHandler
	if s.cfg.Metrics.Enabled {
		prom = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{
			Registry:          s.prom,
			EnableOpenMetrics: true,
		}))
	}

	return func(ctx *fasthttp.RequestCtx) {
		switch path := string(ctx.Path()); {
		case path == s.cfg.Path:
			s.handleUpgrade(ctx)
		case prom != nil && path == s.cfg.Metrics.Path:
			prom(ctx)
		default:
			app(ctx)
		}
	}
}

// RegisterRoutes registers the informational routes via Fiber. The
// WebSocket upgrade itself is served by handleUpgrade on the raw fasthttp
// handler since Fiber v3 does not expose *fasthttp.RequestCtx.
func (s *Server) RegisterRoutes(group fiber.Router) {
	group.Get(s.cfg.Path+"/info", s.handleInfo)
	group.Get(s.cfg.Path+"/online", s.handleOnline)
	group.Get(s.cfg.Path+"/online/:userId", s.handleUserOnline)
	group.Get(s.cfg.Path+"/clients", s.handleClients)
	group.Get("/healthz", s.handleHealth)
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  s.cfg.Path,
		"clients":   s.hub.ClientCount(),
		"online":    len(s.hub.OnlineUsers()),
		"auth":      s.cfg.Auth.Mode,
		"ingest":    s.bridge != nil && s.bridge.Available(),
	})
}

func (s *Server) handleOnline(c fiber.Ctx) error {
	users := s.service.OnlineUsers()
	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}

func (s *Server) handleUserOnline(c fiber.Ctx) error {
	userID := c.Params("userId")
	return c.JSON(fiber.Map{"userId": userID, "online": s.service.IsOnline(userID)})
}

func (s *Server) handleClients(c fiber.Ctx) error {
	clients := s.service.GetConnectedClients()
	infos := make([]any, 0, len(clients))
	for _, id := range clients {
		info, err := s.service.GetClientInfo(id)
		if err == nil {
			infos = append(infos, info)
		}
	}
	return c.JSON(fiber.Map{"clients": infos, "count": len(infos)})
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	redisUp := true
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("redis is not responding")
			redisUp = false
		}
	}
	status := fiber.StatusOK
	if !redisUp {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"status": status == fiber.StatusOK, "redis": redisUp})
}

func (s *Server) upgrader() *websocket.FastHTTPUpgrader {
	return &websocket.FastHTTPUpgrader{
		ReadBufferSize:  s.cfg.ReadBufferSize,
		WriteBufferSize: s.cfg.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
}

func (s *Server) checkOrigin(ctx *fasthttp.RequestCtx) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleUpgrade(ctx *fasthttp.RequestCtx) {
	upgrade := string(ctx.Request.Header.Peek("Upgrade"))
	if !strings.EqualFold(upgrade, "websocket") {
		writeError(ctx, fasthttp.StatusUpgradeRequired, "upgrade_required", "WebSocket upgrade required")
		return
	}

	if s.hub.ClientCount() >= s.cfg.MaxConnections {
		writeError(ctx, fasthttp.StatusServiceUnavailable, "too_many_connections", "connection limit reached")
		return
	}

	var bound string
	if s.auth != nil {
		claims, err := s.authenticate(ctx)
		if err != nil {
			reason, status := authFailure(err)
			s.metrics.AuthFailed(reason)
			s.logger.Warn().Err(err).Str("remote_addr", ctx.RemoteAddr().String()).Msg("websocket auth failed")
			writeError(ctx, status, reason, "not authorized")
			return
		}
		bound = claims.UserID
	}

	clientID := uuid.New().String()
	remote := ctx.RemoteAddr().String()
	h := s.hub

	err := s.upgrader().Upgrade(ctx, func(conn *websocket.Conn) {
		client := hub.NewClient(clientID, newWSConn(conn, s.cfg.WriteDuration(), s.cfg.PongDuration()), h,
			hub.WithIdentity(bound),
			hub.WithRemoteAddr(remote),
			hub.WithPingInterval(s.cfg.PingDuration()),
			hub.WithSendBuffer(s.cfg.SendBuffer),
		)
		h.Register(client)
		go client.WritePump()
		client.ReadPump()
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
	}
}

func (s *Server) authenticate(ctx *fasthttp.RequestCtx) (*auth.Claims, error) {
	var token string
	if name := s.cfg.Auth.CookieName; name != "" {
		token = string(ctx.Request.Header.Cookie(name))
	}
	if token == "" && s.cfg.Auth.TokenQueryParam != "" {
		token = string(ctx.QueryArgs().Peek(s.cfg.Auth.TokenQueryParam))
	}

	vctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.auth.Verify(vctx, token)
}

func authFailure(err error) (string, int) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing_token", fasthttp.StatusUnauthorized
	case errors.Is(err, auth.ErrRevoked):
		return "revoked", fasthttp.StatusUnauthorized
	case errors.Is(err, auth.ErrUnknownUser):
		return "unknown_user", fasthttp.StatusUnauthorized
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token", fasthttp.StatusUnauthorized
	default:
		return "lookup_failed", fasthttp.StatusInternalServerError
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + code + `","message":"` + message + `"}`)
}
