// Package audit delivers security events to sinks off the request path.
//
// The engine builds an [Event] for every authentication, session and login
// outcome and hands it to a [Dispatcher]. The dispatcher owns one bounded
// queue and one delivery goroutine. When the queue is full it either drops
// the event (counted by Dropped) or blocks the caller until its context
// ends. Each sink call runs under its own timeout, and a sink that panics
// loses that event only.
//
// Sinks: channel, JSON lines, slog, AMQP and OpenTelemetry logs. Choosing
// which events to emit is the engine's job; this package never filters.
package audit
