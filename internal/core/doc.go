// Package core runs the workbook sync and serves the published dashboard.
//
// This package sits between the fetch/summary/snapshot building blocks and
// the web and CLI layers. It holds no HTTP or terminal code of its own.
//
// # Sync Cycle
//
// A [Syncer] downloads the shared workbook, parses it into a
// [summary.Summary] and publishes it into a [snapshot.Store]:
//
//	syncer := core.NewSyncer(core.SyncConfig{
//	    ShareURL: cfg.Sync.FileURL,
//	    FileName: cfg.Sync.FileName,
//	    Selector: summary.NewSelector(cfg.Sync.QuantitySheet, cfg.Sync.StyleSheet),
//	}, fetcher, summary.NewParser(summary.Options{}), store)
//	go syncer.Start(ctx, time.Hour)
//
// Start runs one cycle immediately and then one per interval. Manual
// refreshes ([Syncer.ForceRefresh], [Syncer.TriggerRefresh]) share the same
// singleflight key as the timer, so at most one cycle is ever in flight.
//
// # Failure Handling
//
// A failed cycle never replaces the published Summary. The error is recorded
// in [snapshot.SyncMetadata] together with a user-facing code from [MapError]:
//
//   - FETCH001-FETCH005: download errors (unreachable, status, HTML page)
//   - SCH001-SCH005: workbook errors (sheet, columns, weeks, values)
//   - API001-API003: request errors (basis, week mode, no data)
//
// # Reading
//
// [Service] is what handlers call. Reads go to the in-memory snapshot only;
// the network is touched solely by the Syncer.
package core
