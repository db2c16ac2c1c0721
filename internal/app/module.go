package app

import (
	"context"
	"errors"
	"io/fs"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/api"
	"github.com/tranvh/chatline/internal/bus"
	"github.com/tranvh/chatline/internal/chatsync"
	"github.com/tranvh/chatline/internal/config"
	"github.com/tranvh/chatline/internal/connectivity"
	"github.com/tranvh/chatline/internal/lock"
	"github.com/tranvh/chatline/internal/logging"
	"github.com/tranvh/chatline/internal/presence"
	"github.com/tranvh/chatline/internal/realtime"
	"github.com/tranvh/chatline/internal/session"
	"github.com/tranvh/chatline/internal/status"
	"github.com/tranvh/chatline/internal/store"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module composes the sync core: store, API client and services, realtime
// transport, sync engine, presence tracker and connectivity monitor.
func Module(p Params) fx.Option {
	return fx.Module("chatline",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideMonitor,
			provideClient,
			provideTransport,
			providePresence,
			provideConversationList,
			provideEngine,
			api.NewAuthService,
			api.NewUserService,
			api.NewFriendService,
			api.NewConversationService,
			api.NewNotificationService,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

// provideConfig loads ~/.chatline/config.toml, writing the defaults on
// first run so the user has a file to edit. Startup refuses to continue
// without a base_url rather than dialing an empty URL later.
func provideConfig(logger *zap.Logger) (*config.Config, error) {
	path := session.ConfigPath()
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if err := config.Save(path, cfg); err != nil {
			return nil, err
		}
		logger.Info("wrote default config, edit it and restart", zap.String("path", path))
	} else if err != nil {
		return nil, err
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CredsDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

// provideMonitor builds the monitor without its probe; the probe needs the
// API client, which needs the monitor as its sink. SetProbe closes the loop
// in registerLifecycle.
func provideMonitor(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *connectivity.Monitor {
	return connectivity.NewMonitor(cfg, nil, b, logger)
}

func provideClient(cfg *config.Config, db *store.DB, monitor *connectivity.Monitor, b *bus.Bus, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg, db, monitor, b, logger)
}

func provideTransport(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *realtime.Transport {
	return realtime.NewTransport(cfg, b, machine, logger)
}

func providePresence(b *bus.Bus, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(b, logger)
}

func provideConversationList(svc *api.ConversationService, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *chatsync.ConversationList {
	return chatsync.NewConversationList(svc, cfg.PageSize, b, logger)
}

func provideEngine(cfg *config.Config, svc *api.ConversationService, list *chatsync.ConversationList, transport *realtime.Transport, b *bus.Bus, logger *zap.Logger) *chatsync.Engine {
	return chatsync.NewEngine(cfg, svc, list, transport, b, logger)
}

// Services aggregates the endpoint services so the lifecycle pulls every
// one of them into the graph. They are also the module's surface for an
// embedding UI shell.
type Services struct {
	fx.In

	Auth          *api.AuthService
	Users         *api.UserService
	Friends       *api.FriendService
	Conversations *api.ConversationService
	Notifications *api.NotificationService
}

func registerLifecycle(
	lc fx.Lifecycle,
	lk *lock.Lock,
	db *store.DB,
	client *api.Client,
	svcs Services,
	monitor *connectivity.Monitor,
	transport *realtime.Transport,
	tracker *presence.Tracker,
	engine *chatsync.Engine,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			monitor.SetProbe(client.Probe)
			go monitor.Run(runCtx)
			go tracker.Run(runCtx)
			go engine.Run(runCtx)
			go watchSession(runCtx, b, transport, machine, logger)

			creds, err := db.Credentials()
			if err != nil {
				return err
			}
			if creds == nil {
				logger.Info("no credentials found, auth required")
				return machine.Transition(status.AuthRequired)
			}

			if err := machine.Transition(status.Connecting); err != nil {
				return err
			}
			transport.SetToken(creds.AccessToken)
			transport.Connect(runCtx)

			// Validate the stored session and prime the room list. A dead
			// token surfaces here as a refresh or an expiry, both handled
			// by the client and watchSession.
			go func() {
				user, err := svcs.Users.Me(runCtx)
				if err != nil {
					logger.Warn("session validation failed", zap.Error(err))
					return
				}
				logger.Info("session restored", zap.String("user", user.Username))
				if err := engine.List().Refresh(runCtx); err != nil {
					logger.Warn("initial list fetch failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			transport.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// watchSession reacts to auth lifecycle events: a rotated token is handed
// to the realtime transport so the next dial authenticates with the current
// pair, and an expired session tears the socket down and routes the client
// back to the unauthenticated state.
func watchSession(ctx context.Context, b *bus.Bus, transport *realtime.Transport, machine *status.Machine, logger *zap.Logger) {
	events, unsub := b.Subscribe(bus.NamespaceSession, 16)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			switch evt.Kind {
			case api.KindTokenRotated:
				token, ok := evt.Payload.(string)
				if !ok || token == "" {
					logger.Warn("token rotation event without token")
					continue
				}
				logger.Info("rotating socket token")
				transport.SetToken(token)
			case api.KindSessionExpired:
				logger.Warn("session expired, disconnecting")
				transport.Close()
				if err := machine.Transition(status.AuthRequired); err != nil {
					logger.Warn("status transition failed", zap.Error(err))
				}
			}
		}
	}
}
