// Package download provides the orchestration logic for fetching a mod and
// its dependencies from the mod portal.
//
// # Manager
//
// The Manager coordinates the entire download process:
//
//  1. Parse the mod reference (name, name@version or page URL)
//  2. Resolve the dependency tree from the catalog
//  3. Flatten it so dependencies come first
//  4. Skip artifacts already present in the output directory
//  5. Transfer the rest, resuming partial files
//
// # Basic Usage
//
//	manager := download.NewManager(settings, provider, client, log, func(event download.Event) {
//	    fmt.Println(event.Message)
//	})
//
//	result := manager.DownloadMod(ctx, "flib")
//	for _, failed := range result.Failed {
//	    fmt.Println(failed.Name, failed.Error)
//	}
//
// DownloadMod never returns an error: failures of single mods are listed in
// the result next to the mods that succeeded.
//
// # Concurrency
//
// Mods of one request are processed one at a time, in dependency order.
// DownloadBatch runs several independent requests in parallel, bounded by
// settings.MaxConcurrentMods (at most 10).
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives Event:
//
//	type Event struct {
//	    Kind    EventKind // Analyzing, Downloading, Complete, Error
//	    Mod     string
//	    Message string
//	    Level   ProgressLevel
//	    ...
//	}
//
// # Retry Logic
//
// Failed transfers are retried by the transfer engine with a configurable
// delay, see settings.MaxRetries, settings.RetryDelay and
// settings.RetryExponent.
package download
