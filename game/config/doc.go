// Package config provides server settings and session creation presets.
//
// Settings are read from the environment (and a .env file loaded by main):
//
//	PORT                   HTTP port (8080)
//	PRESETS_DIR            preset directory (presets)
//	MAX_SESSIONS           session capacity (100)
//	SESSION_TIMEOUT_HOURS  cleanup max age (24)
//	SESSION_IDLE_HOURS     cleanup max idle (12)
//	STALE_HOURS            stale threshold for status and health (24)
//	CLEANUP_INTERVAL       periodic cleanup interval (10m)
//	EVENT_QUEUE_SIZE       event dispatcher queue length (256)
//	EMIT_EVENTS            emit session events by default (true)
//	NGROK, NGROK_DOMAIN    expose the server through an ngrok tunnel
//	DEBUG                  debug logging
//
// Presets:
//
// A preset names a game type plus the config and tags a new session starts
// with. Presets live in one directory as <id>.json, <id>.yaml or <id>.yml:
//
//	{
//	  "name": "Hard tic-tac-toe",
//	  "game_type": "tic_tac_toe",
//	  "config": {"ai_difficulty": "hard"},
//	  "tags": ["ai"]
//	}
//
// Usage:
//
//	presets, err := config.NewManager("presets", registry)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	p, err := presets.LoadPreset("hard_ttt")
//	list, err := presets.ListPresets()
//
// Loaded presets are cached until ReloadPreset or RefreshCache. When the
// manager has a plugin registry, a preset only loads if its game type is
// registered and the plugin accepts its config.
package config
