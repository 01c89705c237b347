// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package testinfra starts throwaway Redis and NATS containers for
// integration tests via testcontainers-go.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// Tests skip when Docker is unavailable:
//
//	func TestRedisCache(t *testing.T) {
//	    ctx := context.Background()
//	    redis, err := testinfra.NewRedisContainer(ctx, t)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    client, _ := catalog.Connect(ctx, redis.URL)
//	    // ...
//	}
package testinfra
