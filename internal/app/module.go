// Package app wires the chat client together with fx.
package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/matheus3301/clinicchat/internal/bus"
	"github.com/matheus3301/clinicchat/internal/chat"
	"github.com/matheus3301/clinicchat/internal/config"
	"github.com/matheus3301/clinicchat/internal/logging"
	"github.com/matheus3301/clinicchat/internal/profile"
	"github.com/matheus3301/clinicchat/internal/status"
	"github.com/matheus3301/clinicchat/internal/transport"
	"github.com/matheus3301/clinicchat/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved identity and configuration passed to the fx module.
type Params struct {
	Identity profile.Identity
	Config   *config.Config
	// TUI runs the terminal widget and keeps stderr free of log output.
	TUI bool
}

// Module returns the fx module for the client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	opts := []fx.Option{
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideTransport,
			provideManager,
		),
		fx.Invoke(registerLifecycle),
	}
	if p.TUI {
		opts = append(opts,
			fx.Provide(provideTUI),
			fx.Invoke(registerTUI),
		)
	}
	return fx.Module("clinicchat", opts...)
}

// WithLogger routes fx's own events through the client logger.
func WithLogger() fx.Option {
	return fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	})
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.Identity.ID); err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Path:     profile.LogPath(p.Identity.ID),
		Identity: p.Identity.ID,
		Level:    p.Config.LogLevel,
		Console:  !p.TUI,
	})
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("session_id", uuid.NewString())), nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideTransport(p Params, logger *zap.Logger) *transport.Client {
	return transport.New(transport.Options{
		URL:          p.Config.ServerURL,
		ReconnectMin: p.Config.Reconnect.Min.Duration,
		ReconnectMax: p.Config.Reconnect.Max.Duration,
	}, logger.Named("transport"))
}

func provideManager(t *transport.Client, m *status.Machine, b *bus.Bus, logger *zap.Logger) *chat.Manager {
	return chat.NewManager(t, m, b, logger.Named("chat"), chat.Options{LockDir: profile.Dir})
}

func provideTUI(mgr *chat.Manager, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(mgr, b, logger.Named("tui"))
}

func registerLifecycle(lc fx.Lifecycle, p Params, mgr *chat.Manager, b *bus.Bus, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("starting client",
				zap.String("server_url", p.Config.ServerURL),
				zap.String("user_id", p.Identity.ID))
			// The start context expires once startup completes; the session outlives it.
			return mgr.Connect(context.Background(), p.Identity)
		},
		OnStop: func(_ context.Context) error {
			mgr.Disconnect()
			b.Close()
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

func registerTUI(lc fx.Lifecycle, ui *tui.App, sd fx.Shutdowner, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("tui exited with error", zap.Error(err))
				}
				if err := sd.Shutdown(); err != nil {
					logger.Warn("shutdown request failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			ui.Stop()
			return nil
		},
	})
}
