package daemon

import (
	"context"
	"path/filepath"

	"github.com/springsconnect/springs/internal/api"
	"github.com/springsconnect/springs/internal/audio"
	"github.com/springsconnect/springs/internal/blob"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/chat"
	"github.com/springsconnect/springs/internal/config"
	"github.com/springsconnect/springs/internal/cue"
	"github.com/springsconnect/springs/internal/lock"
	"github.com/springsconnect/springs/internal/logging"
	"github.com/springsconnect/springs/internal/outbox"
	"github.com/springsconnect/springs/internal/presence"
	"github.com/springsconnect/springs/internal/profile"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/socket"
	"github.com/springsconnect/springs/internal/status"
	"github.com/springsconnect/springs/internal/store"
	"github.com/springsconnect/springs/internal/thread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile  string
	Settings config.Profile
	Dir      string // optional override for testing; empty = use default
	// SocketPath is an optional override for testing; empty = use default.
	SocketPath string
	// Quiet keeps logs out of stderr when a TUI owns the terminal.
	Quiet bool
}

func (p Params) dir() string {
	if p.Dir != "" {
		return p.Dir
	}
	return profile.Dir(p.Profile)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBlobs,
			provideAPI,
			provideSocket,
			provideThreads,
			providePresence,
			provideCue,
			provideSender,
			provideRecorder,
			provideChat,
			provideRPC,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(filepath.Join(p.dir(), "logs", "springsd.log"), logging.Options{
		Profile: p.Profile,
		UserID:  p.Settings.UserID,
		Quiet:   p.Quiet,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(p.dir())
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by its owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, result, err := store.OpenProfile(p.dir())
	if err != nil {
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("to", result.To))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.To))
	}
	logger.Info("store initialized", zap.String("path", db.Path()))
	return db, nil
}

func provideBlobs(p Params) (*blob.Store, error) {
	return blob.Open(filepath.Join(p.dir(), "media"))
}

func provideAPI(p Params, logger *zap.Logger) *api.Client {
	s := p.Settings
	return api.NewClient(s.APIURL, s.Token, s.FetchTimeout.Duration, logger.Named("api"))
}

func provideSocket(p Params, logger *zap.Logger) *socket.Client {
	return socket.New(p.Settings.SocketEndpoint(), p.Settings.Token, logger.Named("socket"))
}

func provideThreads() *thread.Registry {
	return thread.NewRegistry()
}

func providePresence(b *bus.Bus) *presence.Tracker {
	return presence.NewTracker(b)
}

func provideCue(p Params, logger *zap.Logger) cue.Player {
	return cue.NewCommandPlayer(p.Settings.SentCueCommand, logger.Named("cue"))
}

func provideSender(threads *thread.Registry, client *api.Client, db *store.DB, blobs *blob.Store,
	sock *socket.Client, tracker *presence.Tracker, player cue.Player, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(threads, client, db, blobs, sock, tracker, player, b, logger.Named("outbox"))
}

func provideRecorder(p Params, blobs *blob.Store, b *bus.Bus, logger *zap.Logger) *audio.Session {
	dev := &audio.CommandDevice{Commands: p.Settings.Recorder}
	return audio.NewSession(dev, blobs, b, nil, p.Settings.RecordingLimit.Duration, logger.Named("audio"))
}

func provideChat(p Params, threads *thread.Registry, client *api.Client, sock *socket.Client, db *store.DB,
	sender *outbox.Sender, tracker *presence.Tracker, b *bus.Bus, logger *zap.Logger) *chat.Service {
	s := p.Settings
	return chat.NewService(chat.Deps{
		UserID:         s.UserID,
		Threads:        threads,
		Rooms:          client,
		Socket:         sock,
		Store:          db,
		Sender:         sender,
		Presence:       tracker,
		Bus:            b,
		Logger:         logger.Named("chat"),
		TypingInterval: s.TypingInterval.Duration,
		TypingLinger:   s.TypingLinger.Duration,
		ReadThrottle:   s.ReadThrottle.Duration,
	})
}

func provideRPC(p Params, svc *chat.Service, recorder *audio.Session, blobs *blob.Store, db *store.DB,
	sock *socket.Client, m *status.Machine, b *bus.Bus, logger *zap.Logger) *rpc.Server {
	return rpc.NewServer(p.Profile, svc, recorder, blobs, db, sock, m, b, logger.Named("rpc"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, sock *socket.Client,
	sender *outbox.Sender, svc *chat.Service, recorder *audio.Session, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			sock.OnConnect(func() {
				if err := machine.Connected(); err != nil {
					logger.Debug("state not advanced on connect", zap.Error(err))
				}
			})
			sock.OnDisconnect(func() {
				if err := machine.Disconnected(); err != nil {
					logger.Debug("state not changed on disconnect", zap.Error(err))
				}
			})

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			sender.Start(context.Background())

			_ = machine.Transition(status.Connecting)
			// The chat service announces the user and rejoins rooms on every connect.
			go sock.Start(context.Background())

			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Stopping)
			if recorder.Active() {
				if _, err := recorder.Stop(); err != nil {
					logger.Warn("error stopping recording", zap.Error(err))
				}
			}
			svc.Offline()
			_ = sock.Close()
			sender.Stop()
			svc.Close()
			srv.Stop(ctx)
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
