// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package services provides suture.Service wrappers for process components.

Each wrapper translates a component lifecycle (ListenAndServe,
Start/Shutdown, ticker loop) into suture's context-aware Serve:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTPServerService wraps *http.Server. Cancellation triggers Shutdown with
a drain timeout; http.ErrServerClosed is a clean stop.

NATSComponentsService wraps the intake components (embedded NATS server,
JetStream stream, Watermill router). A Start error is returned so the
supervisor restarts intake with backoff.

PeriodicService runs a maintenance Task on a ticker. Used for the DLQ
expiry sweep and the catalog metadata cache sweep. Task errors are logged
and the loop keeps running.

# Error Handling

	nil         stopped cleanly, not restarted
	error       crashed, restarted with backoff
	ctx.Err()   shutdown requested
*/
package services
