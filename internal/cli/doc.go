// Package cli реализует команды инструмента restbook.
//
// # Обзор
//
// Команды собирают зависимости (хранилище сессий, хранилище
// контрольных точек, наблюдателей метрик и событий) и передают
// их движку плейбуков.
//
// # Команды
//
//   - run        — выполнение плейбука, однократно или по cron
//   - session    — CRUD именованных сессий и импорт из OpenAPI
//   - checkpoint — просмотр и удаление контрольных точек
package cli
