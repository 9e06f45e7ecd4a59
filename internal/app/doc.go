// Package app is galley's composition root.
//
// Run loads configuration, opens the log file and the local SQLite store,
// ensures the device identity, restores the board, builds the gateway for
// the configured driver and then runs the sync engine and the UI side by
// side in an errgroup:
//
//	Run()
//	 ├─> config.Load / Validate
//	 ├─> logging.New            file logger, the terminal belongs to the UI
//	 ├─> storage.OpenSQLite     deviceId, deviceToken, lastSyncTime, orders
//	 ├─> device.Ensure
//	 ├─> board.Load
//	 ├─> newGateway             rest (PostgREST) or postgres (pgxpool)
//	 └─> runLoop
//	      ├─> engine.Start      first cycle, then every poll interval
//	      └─> ui.Run            blocks until quit
//
// Every delivered batch is merged into the board by the callback from
// mergeInto; the UI learns about it through board.Subscribe.
//
// Startup failures are returned wrapped with context. Once running, sync
// failures are logged and retried on the next cycle. Quitting the UI
// cancels the engine, which is stopped and drained before Run returns.
package app
