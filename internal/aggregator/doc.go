// Package aggregator receives state reports from workers and keeps the
// authoritative snapshot of every evaluation iteration.
//
// Workers connect over websocket and send one frame per report. Every frame
// is acknowledged once it has been applied or rejected, and a stream ends
// with the stop sentinel. Reports naming nodes outside the job graph are
// logged and dropped; the stream goes on.
//
// The same listener serves a small HTTP API:
//   - GET /health answers OK
//   - GET /iterations lists the iterations with a store
//   - GET /snapshot?iter=N returns the snapshot of iteration N
//   - GET /node?iter=N&address=reals.1.stages.0 returns one node
package aggregator
