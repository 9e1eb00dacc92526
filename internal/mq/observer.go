package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/shalev007/restbook/internal/playbook"
)

// publishTimeout — предел ожидания публикации одного события.
const publishTimeout = 5 * time.Second

// EventsObserver публикует события выполнения в RabbitMQ.
// Реализует playbook.Observer.
//
// Публикация fire-and-forget: ошибка брокера логируется
// и не влияет на выполнение плейбука.
type EventsObserver struct {
	publisher *Publisher
	logger    *slog.Logger
}

// NewEventsObserver создаёт наблюдателя поверх publisher.
func NewEventsObserver(publisher *Publisher, logger *slog.Logger) *EventsObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsObserver{publisher: publisher, logger: logger}
}

// Notify публикует событие выполнения.
func (o *EventsObserver) Notify(event playbook.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := o.publisher.Publish(ctx, string(event.Kind()), event); err != nil {
		o.logger.Warn("failed to publish execution event",
			"kind", event.Kind(),
			"error", err,
		)
	}
}
