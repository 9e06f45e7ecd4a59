// Package config loads galley's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/galley/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # TOML Format
//
//	[gateway]
//	driver = "rest"            # rest | postgres
//	url = "https://<project>.supabase.co"
//	api_key = "<anon key>"
//	table = "kitchen_orders"
//	dsn = ""                   # postgres driver only
//	request_timeout = "0s"     # 0 = no timeout
//
//	[sync]
//	poll_interval = "5s"
//
//	[storage]
//	path = "~/.local/share/galley/galley.db"
//
//	[log]
//	path = "~/.local/state/galley/galley.log"
//	level = "info"
//
//	[webhook]
//	url = "https://<project>.supabase.co/functions/v1/webhook-kds"
//
// Strings are trimmed and paths expand a leading tilde. Durations use Go
// syntax ("5s", "1m30s").
//
// # Error Handling
//
// A missing file is not an error. Unreadable files, invalid TOML and
// malformed durations are; their messages start with "parse config" when
// the content is at fault. Load does not check that a gateway can be built
// from the result; call Validate for that.
package config
