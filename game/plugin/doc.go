// Package plugin defines the contract between the session manager and the
// games it hosts.
//
// A Plugin validates a raw configuration map, builds the initial State for a
// new session and describes itself through GameInfo and a JSON schema. The
// session layer only ever calls State.IsCompleted, State.Touch and
// State.Snapshot; everything else about a state is private to its game.
// Plugins that accept moves also implement Player.
//
// Registry is a thread-safe lookup table from game type to plugin. Game types
// are compared case-insensitively.
package plugin
