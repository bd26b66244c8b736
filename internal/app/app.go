package app

import "go.uber.org/zap"

// App wires the scheduling engine to its collaborators. The store, calendar
// provider and notifier are interfaces so every piece is testable without
// Postgres or Google.
type App struct {
	Store    Store
	Calendar CalendarProvider // nil when the OAuth client is not configured
	Notifier Notifier
	Logger   *zap.Logger
}
