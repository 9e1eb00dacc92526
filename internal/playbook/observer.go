package playbook

import (
	"log/slog"
	"sync"
)

// Observer получает события выполнения плейбука.
//
// Уведомления синхронные: наблюдатель не должен блокироваться надолго.
type Observer interface {
	Notify(event Event)
}

// Flusher реализуется наблюдателями, которым нужно сбросить
// накопленное состояние по завершении выполнения.
type Flusher interface {
	Flush() error
}

// Observers рассылает события зарегистрированным наблюдателям.
// Паника наблюдателя не прерывает выполнение плейбука.
type Observers struct {
	mu     sync.Mutex
	list   []Observer
	logger *slog.Logger
}

// NewObservers создаёт рассыльщик событий.
func NewObservers(logger *slog.Logger, observers ...Observer) *Observers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observers{list: observers, logger: logger}
}

// Register добавляет наблюдателя.
func (o *Observers) Register(obs Observer) {
	o.mu.Lock()
	o.list = append(o.list, obs)
	o.mu.Unlock()
}

// Notify рассылает событие всем наблюдателям.
func (o *Observers) Notify(event Event) {
	o.mu.Lock()
	observers := make([]Observer, len(o.list))
	copy(observers, o.list)
	o.mu.Unlock()

	for _, obs := range observers {
		o.notifyOne(obs, event)
	}
}

func (o *Observers) notifyOne(obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("observer panicked", "kind", event.Kind(), "panic", r)
		}
	}()
	obs.Notify(event)
}

// Flush сбрасывает состояние наблюдателей, реализующих Flusher.
func (o *Observers) Flush() {
	o.mu.Lock()
	observers := make([]Observer, len(o.list))
	copy(observers, o.list)
	o.mu.Unlock()

	for _, obs := range observers {
		if f, ok := obs.(Flusher); ok {
			if err := f.Flush(); err != nil {
				o.logger.Warn("observer flush failed", "error", err)
			}
		}
	}
}
