// Package websocket streams session events to WebSocket clients.
//
// The Hub is an events.Sink: register it with the event dispatcher and every
// event the session manager emits is pushed to interested clients as one JSON
// text frame, in the events.Event wire format:
//
//	{"event_id": "...", "event_type": "session_updated", "session_id": "ttt-1",
//	 "timestamp": "...", "details": {...}, "correlation_id": null}
//
// Subscriptions:
//
// A client subscribes to one session (GET /ws?session=<id>) or to all events
// (GET /ws). Session clients receive that session's events; catch-all clients
// also receive events without a session, such as cleanup_performed and
// bulk_operation.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	dispatcher.AddSink(hub)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
// Concurrency:
//
// Registration, removal and fan-out all run on the hub goroutine, so the
// subscription table needs no lock. Each client has its own buffered send
// queue and write goroutine; a client whose queue is full is disconnected
// rather than slowing the others.
package websocket
