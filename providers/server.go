package providers

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/socialnet/socket/config"
	"github.com/socialnet/socket/src/auth"
	"github.com/socialnet/socket/src/bridge"
	"github.com/socialnet/socket/src/hub"
	"github.com/socialnet/socket/src/metrics"
	"github.com/socialnet/socket/src/presence"
	"github.com/socialnet/socket/src/service"
	"github.com/valyala/fasthttp"
)

// Server wires the hub, its collaborators and the HTTP surface.
type Server struct {
	active  atomic.Bool
	cfg     *config.SocketConfig
	logger  zerolog.Logger
	hub     *hub.Hub
	service *service.Service
	metrics *metrics.Metrics
	prom    *prometheus.Registry
	auth    *auth.Authenticator
	users   *auth.MongoUsers
	redis   *redis.Client
	bridge  bridge.Bridge
	app     *fiber.App
	http    *fasthttp.Server
}

// NewServer creates a server; call Activate before serving.
func NewServer(cfg *config.SocketConfig, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Activate initializes the hub, service and optional Redis and MongoDB
// collaborators, and starts the event loop.
func (s *Server) Activate(ctx context.Context) error {
	s.metrics = metrics.New()
	s.prom = prometheus.NewRegistry()
	if err := s.metrics.Register(s.prom); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	s.hub = hub.New(s.logger, presence.NewMemoryRegistry(), hub.WithMetrics(s.metrics))
	s.service = service.New(s.hub, s.logger)
	go s.hub.Run()

	// Redis is optional (non-fatal if unavailable).
	s.initRedis(ctx)

	if err := s.initAuth(ctx); err != nil {
		s.hub.Stop()
		return err
	}

	s.app = fiber.New()
	s.RegisterRoutes(s.app)
	s.http = &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "socialnet-socket",
		ReadTimeout:  s.cfg.PongDuration(),
		WriteTimeout: s.cfg.WriteDuration(),
		Logger:       fasthttpLogger{s.logger},
	}

	s.active.Store(true)
	s.logger.Info().Str("auth_mode", s.cfg.Auth.Mode).Msg("socket server activated")
	return nil
}

// initRedis connects the revocation list and the event ingest. If Redis is
// not reachable, the server runs standalone.
func (s *Server) initRedis(ctx context.Context) {
	if !s.cfg.Redis.Enabled {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("redis unavailable, running standalone")
		_ = client.Close()
		return
	}
	s.redis = client

	ingest := bridge.NewRedisIngest(client, s.cfg.Redis.Prefix, s.service, s.logger)
	if err := ingest.Start(); err != nil {
		s.logger.Warn().Err(err).Msg("redis ingest unavailable")
		return
	}
	s.bridge = ingest
	s.logger.Info().Str("redis_addr", s.cfg.Redis.Addr).Msg("redis connected")
}

func (s *Server) initAuth(ctx context.Context) error {
	if s.cfg.Auth.Mode != config.AuthEnforce {
		s.logger.Warn().Msg("identity binding is off, announced user ids are trusted")
		return nil
	}

	var opts []auth.Option
	if s.redis != nil {
		opts = append(opts, auth.WithRevocations(auth.NewRedisRevocations(s.redis, s.cfg.Redis.Prefix)))
	}
	if s.cfg.Mongo.URI != "" {
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		users, err := auth.ConnectMongoUsers(connCtx, s.cfg.Mongo.URI, s.cfg.Mongo.Database, s.cfg.Mongo.Collection)
		if err != nil {
			return err
		}
		s.users = users
		opts = append(opts, auth.WithUserDirectory(users))
	}
	s.auth = auth.NewAuthenticator(s.cfg.Auth.Secret, s.logger, opts...)
	return nil
}

// Serve accepts connections on ln until Deactivate is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Str("path", s.cfg.Path).Msg("listening")
	return s.http.Serve(ln)
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Deactivate stops the listener, the bridge and the hub event loop.
func (s *Server) Deactivate() error {
	if s.http != nil {
		if err := s.http.Shutdown(); err != nil {
			s.logger.Error().Err(err).Msg("http shutdown error")
		}
	}
	if s.bridge != nil {
		if err := s.bridge.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("bridge stop error")
		}
		s.bridge = nil
	}
	if s.hub != nil {
		s.hub.Stop()
	}
	if s.users != nil {
		if err := s.users.Close(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("mongo disconnect error")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error().Err(err).Msg("redis close error")
		}
		s.redis = nil
	}
	s.active.Store(false)
	return nil
}

// IsActive reports whether the server is between Activate and Deactivate.
func (s *Server) IsActive() bool { return s.active.Load() }

// Service exposes the server-side delivery API.
func (s *Server) Service() *service.Service { return s.service }

// Authenticator returns the session verifier, or nil when binding is off.
func (s *Server) Authenticator() *auth.Authenticator { return s.auth }

type fasthttpLogger struct {
	logger zerolog.Logger
}

func (l fasthttpLogger) Printf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}
