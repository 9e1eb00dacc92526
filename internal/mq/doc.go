// Package mq публикует события выполнения плейбука в RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ
//   - publisher.go  — публикация событий в topic exchange
//   - observer.go   — мост между событиями движка и publisher
//
// Ключ маршрутизации — тип события:
//   - playbook_start / playbook_end
//   - phase_start / phase_end
//   - step_start / step_end
//   - request_start / request_end
//
// Exchange по умолчанию — restbook.events (topic, durable).
package mq
