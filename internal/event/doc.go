// Package event provides a synchronous pub-sub bus and the run lifecycle
// events that flow over it.
//
// The scheduler publishes one event per state transition: round start and
// completion, every turn outcome (completed, failed, blocked), budget warnings
// and exhaustion, and checkpoint saves. The orchestrator brackets a run with
// [RunStartedEvent] and [RunFinishedEvent] and subscribes a wildcard handler
// that writes every event to the run log via [Event.LogAttrs].
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on the
// publishing goroutine; a panicking handler is recovered and logged so it
// cannot stop delivery to the remaining handlers.
//
// # Example
//
//	bus := event.NewBus(event.WithLogger(logger))
//	bus.Subscribe(event.TypeTurnFailed, func(e event.Event) {
//		failed := e.(event.TurnFailedEvent)
//		logger.Warn("turn failed", "role", failed.Role)
//	})
//	bus.Publish(event.NewTurnFailedEvent(2, "engineer", err))
package event
