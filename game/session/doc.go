// Package session manages the lifecycle of game sessions.
//
// A Manager owns a table of Records, each wrapping the opaque plugin.State of
// one game, plus a single optional active session that operations fall back
// to when no id is given. Every public operation returns a *Result instead of
// an error; failed results carry a Code and Result.Err maps them back to the
// package's sentinel errors.
//
// Core operations:
//
//	mgr := session.NewManager(registry, session.WithDispatcher(dispatcher))
//
//	res := mgr.CreateSession(ctx, session.CreateRequest{GameType: "tic_tac_toe"})
//	if !res.Success {
//		return res.Err()
//	}
//
//	mgr.ListSessions(ctx, session.Filter{Tags: []string{"demo"}})
//	mgr.BulkDeleteSessions(ctx, []string{"a", "b"})
//	mgr.CleanupSessions(ctx, session.NewCleanupCriteria())
//
// Session Identifiers:
//
// Ids match [A-Za-z0-9_-]+. Generated ids have the form
// <game_type>-<MMDDHHMM>-<6 hex>, with -1, -2, ... appended on collision.
//
// Concurrency:
//
// The table and the active pointer are guarded by a RWMutex; each Record
// guards its own state, tags and access time. The table lock is always taken
// before a record lock. Plugin calls and event delivery never run under the
// table lock: ids are reserved before the plugin builds the state, and
// capacity is checked again at commit.
//
// Events go to an events.Dispatcher, which delivers them on its own goroutine
// and drops them when its queue is full.
package session
