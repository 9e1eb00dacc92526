package request

import (
	"math/rand"
	"sync"
	"time"
)

// CircuitBreaker — счётчик последовательных ошибок с двумя состояниями:
// closed и open.
//
// Открывается после threshold последовательных ошибок. В открытом
// состоянии IsOpen сравнивает прошедшее время с reset timeout
// (плюс случайный jitter) и самосбрасывается по истечении — отдельного
// half-open состояния нет: следующий запрос просто пропускается, и его
// исход обновляет состояние.
//
// Чисто in-memory объект, никогда не персистится. Область видимости —
// один клиент (или сессия, если клиенты её разделяют).
type CircuitBreaker struct {
	threshold    int
	resetTimeout time.Duration
	jitter       time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	open        bool

	// now подменяется в тестах.
	now func() time.Time
}

// NewCircuitBreaker создаёт закрытый CircuitBreaker.
func NewCircuitBreaker(threshold int, resetTimeout, jitter time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		jitter:       jitter,
		now:          time.Now,
	}
}

// RecordFailure учитывает ошибку. Открывает breaker при достижении порога.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.failures >= cb.threshold {
		cb.open = true
	}
}

// RecordSuccess немедленно закрывает breaker и обнуляет счётчик.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

// IsOpen сообщает, открыт ли breaker.
//
// Если reset timeout (с jitter) истёк, breaker самосбрасывается
// как побочный эффект проверки и возвращается false.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return false
	}

	wait := cb.resetTimeout
	if cb.jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(cb.jitter)))
	}
	if cb.now().Sub(cb.lastFailure) > wait {
		cb.reset()
		return false
	}
	return true
}

// ResetDelay возвращает время ожидания перед следующей попыткой
// при открытом breaker (reset timeout плюс случайный jitter).
func (cb *CircuitBreaker) ResetDelay() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	delay := cb.resetTimeout
	if cb.jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(cb.jitter)))
	}
	return delay
}

// FailureCount возвращает текущее количество последовательных ошибок.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// reset переводит breaker в closed. Вызывается под mu.
func (cb *CircuitBreaker) reset() {
	cb.failures = 0
	cb.open = false
}
