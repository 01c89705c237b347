// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

/*
Package supervisor provides process supervision using suture v4.

The supervisor tree manages every long-running service in the process
with Erlang/OTP-style restart, failure isolation and graceful shutdown.

# Overview

	RootSupervisor ("recsync")
	├── StorageSupervisor ("storage-layer")
	│   ├── store.GCService          Badger value log GC
	│   └── PeriodicService          DLQ expiry sweep, catalog cache sweep
	├── IntakeSupervisor ("intake-layer")
	│   ├── NATSComponentsService    embedded server, stream, router
	│   └── AutoRetryWorker          scheduled DLQ replay
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in the intake layer restarts the NATS components with backoff
while the API keeps serving reads from the stores.

# Usage

	tree, err := supervisor.NewSupervisorTree(slogger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddStorageService(store.NewGCService(db))
	tree.AddIntakeService(services.NewNATSComponentsService(components))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	return tree.Serve(ctx)

# Logging

Supervisor events (service start, failure, backoff) are written through
sutureslog to a log/slog logger. cmd/server bridges that logger onto the
zerolog output so all lines share one format.
*/
package supervisor
