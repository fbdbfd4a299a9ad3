// Package models defines the domain entities for the grimwaves metadata worker.
//
// The package contains two categories of types:
//
// 1. Task envelope types exchanged with the worker-queue runtime:
//   - [TaskRequest] : Immutable submission payload (band, release, market, prefetched data)
//   - [TaskResult] : Terminal verdict for a task, cached and replayed idempotently
//   - [TaskStatus] : Task lifecycle states
//
// 2. Canonical metadata types produced by the aggregator:
//   - [CanonicalRelease] : The single merged record for one artist/release query
//   - [Track] : Song metadata with ISRC for cross-provider matching
//   - [ArtistInfo] / [SocialLinks] : Merged artist identity and links
//
// All canonical types are JSON-serializable so they can round-trip through
// the result cache unchanged.
package models
