// Package service provides the game-level operations that sit between the
// transports (HTTP, WebSocket, MCP) and the session manager.
//
// The service package implements:
//   - Session creation from named presets
//   - Move processing through the session's plugin
//   - Game and preset discovery
//
// Core Interfaces:
//
// GameService is the main service interface. SessionManager is the subset of
// session.Manager it depends on, and PresetStore is satisfied by
// config.Manager.
//
// Moves run inside session.Manager.WithState, so each session handles one
// move at a time while other sessions proceed in parallel. A move that
// finishes the game makes the manager emit session_completed.
//
// Usage:
//
//	svc := service.NewGameService(sessions, registry, presets)
//
//	res, err := svc.CreateSession(ctx, service.CreateRequest{Preset: "hard_ttt"})
//	if err != nil {
//		return err // preset problem
//	}
//	if !res.Success {
//		return res.Err()
//	}
//
//	move, err := svc.Play(ctx, "", map[string]any{"row": 1, "col": 1})
package service
