// Package events carries session lifecycle notifications out of the session
// manager.
//
// Events are built with New, which normalizes the event type to a plain
// lowercase string. A Dispatcher queues events and delivers them to every
// registered Sink from a background goroutine, so delivery never participates
// in the operation that produced the event. Sink errors and panics are logged
// and counted; they never reach the publisher.
//
// Usage:
//
//	dispatcher := events.NewDispatcher(events.WithSink(events.SinkFunc(
//		func(ctx context.Context, e events.Event) error {
//			log.Printf("%s %s", e.Type, e.SessionID)
//			return nil
//		})))
//	defer dispatcher.Close()
//
//	dispatcher.Publish(events.New(events.SessionCreated, "demo-1", nil, ""))
package events
