// Package shutdown реализует двухступенчатую остановку выполнения:
// мягкую (новые фазы и шаги не начинаются) и жёсткую (отмена контекста
// по истечении grace period или по второму сигналу).
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Coordinator связывает сигналы ОС с остановкой движка.
type Coordinator struct {
	grace  time.Duration
	logger *slog.Logger

	stopCh chan struct{}
}

// NewCoordinator создаёт координатор с указанным grace period.
func NewCoordinator(grace time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		grace:  grace,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Stop возвращает канал мягкой остановки. Канал закрывается
// по первому SIGINT/SIGTERM.
func (c *Coordinator) Stop() <-chan struct{} {
	return c.stopCh
}

// Watch запускает обработку сигналов и возвращает контекст,
// который отменяется при жёсткой остановке.
//
// Первый сигнал закрывает канал Stop и даёт выполняющимся шагам
// grace period на завершение. Второй сигнал или истечение grace
// period отменяет контекст.
func (c *Coordinator) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)

		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			c.logger.Info("shutdown requested, waiting for running steps",
				"signal", sig.String(),
				"grace", c.grace,
			)
			close(c.stopCh)
		}

		timer := time.NewTimer(c.grace)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case sig := <-signals:
			c.logger.Warn("forced shutdown", "signal", sig.String())
			cancel()
		case <-timer.C:
			c.logger.Warn("grace period expired, cancelling execution")
			cancel()
		}
	}()

	return ctx, cancel
}
