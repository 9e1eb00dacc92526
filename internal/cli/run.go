package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/shalev007/restbook/internal/checkpoint"
	"github.com/shalev007/restbook/internal/config"
	"github.com/shalev007/restbook/internal/metrics"
	"github.com/shalev007/restbook/internal/mq"
	"github.com/shalev007/restbook/internal/playbook"
	"github.com/shalev007/restbook/internal/request"
	"github.com/shalev007/restbook/internal/session"
	"github.com/shalev007/restbook/internal/shutdown"
)

// Deps — общие зависимости команд.
type Deps struct {
	Logger *slog.Logger

	// StorePath — путь к файлу именованных сессий.
	StorePath func() string

	Output func() *Printer
}

// NewRunCmd создаёт команду выполнения плейбука.
func NewRunCmd(deps Deps) *cobra.Command {
	var (
		noResume bool
		cronExpr string
	)

	cmd := &cobra.Command{
		Use:   "run PLAYBOOK",
		Short: "Execute a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			store, err := session.NewStore(deps.StorePath())
			if err != nil {
				return err
			}

			coordinator := shutdown.NewCoordinator(cfg.ShutdownTimeout(), deps.Logger)
			ctx, cancel := coordinator.Watch(cmd.Context())
			defer cancel()

			if cronExpr == "" {
				return runOnce(ctx, cfg, store, coordinator.Stop(), noResume, deps.Logger)
			}
			return runOnSchedule(ctx, cfg, store, coordinator.Stop(), cronExpr, noResume, deps.Logger)
		},
	}

	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Ignore any existing checkpoint and start from scratch")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Run the playbook on a cron schedule instead of once")

	return cmd
}

// runOnSchedule выполняет плейбук по cron-расписанию до остановки.
// Ошибка отдельного запуска логируется и не прерывает расписание.
func runOnSchedule(ctx context.Context, cfg *config.PlaybookConfig, store *session.Store, stop <-chan struct{}, expr string, noResume bool, logger *slog.Logger) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parse cron expression: %w", err)
	}

	for {
		next := schedule.Next(time.Now())
		logger.Info("next run scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stop:
			timer.Stop()
			logger.Info("schedule stopped")
			return nil
		case <-timer.C:
		}

		if drift := time.Since(next); drift > time.Second {
			logger.Warn("run started late", "drift", drift)
		}

		if err := runOnce(ctx, cfg, store, stop, noResume, logger); err != nil {
			logger.Error("scheduled run failed", "error", err)
		}
	}
}

// runOnce собирает зависимости и выполняет плейбук один раз.
func runOnce(ctx context.Context, cfg *config.PlaybookConfig, store *session.Store, stop <-chan struct{}, noResume bool, logger *slog.Logger) error {
	resolve := func(name string) (request.Session, error) {
		sess, err := resolveSession(cfg, store, name)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	// --no-resume отключает хранилище точек на этот запуск: существующая
	// точка игнорируется, но не удаляется
	var manager *checkpoint.Manager
	if !noResume {
		cpStore, err := checkpoint.NewStore(ctx, cfg.Incremental, resolve, logger)
		if err != nil {
			return err
		}
		if cpStore != nil {
			defer cpStore.Close()
		}

		manager, err = checkpoint.NewManager(cfg, cpStore, logger)
		if err != nil {
			return err
		}
	}

	observers := playbook.NewObservers(logger)

	collector, err := metrics.NewCollector(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	if collector != nil {
		observers.Register(metrics.NewObserver(collector))
	}

	if cfg.Events != nil && cfg.Events.Enabled {
		conn, err := mq.NewConnection(cfg.Events.URL, logger)
		if err != nil {
			return fmt.Errorf("connect to event broker: %w", err)
		}
		defer conn.Close()

		publisher, err := mq.NewPublisher(conn, cfg.Events.Exchange, logger)
		if err != nil {
			return err
		}
		observers.Register(mq.NewEventsObserver(publisher, logger))
	}

	engine := playbook.NewEngine(cfg, logger, playbook.Options{
		Observers:   observers,
		Checkpoints: manager,
		Stop:        stop,
		Fallback: func(name string) (*session.Session, error) {
			return resolveSession(cfg, store, name)
		},
	})

	return engine.Execute(ctx)
}

// resolveSession ищет сессию в плейбуке, затем в постоянном хранилище.
func resolveSession(cfg *config.PlaybookConfig, store *session.Store, name string) (*session.Session, error) {
	if sc, ok := cfg.Sessions[name]; ok {
		return session.FromConfig(name, sc)
	}
	sc, err := store.Get(name)
	if err != nil {
		return nil, err
	}
	return session.FromConfig(name, sc)
}
