// Package backend defines the capability set LiveQ consumes from a
// reactive-query backend, and ships an in-memory implementation of it.
//
// The core never assumes anything about how a backend encodes query
// identity: a Token is opaque and only compared for equality. Everything
// the core needs is expressed by the Backend interface:
//
//   - Subscribe opens a live subscription and reports the canonical
//     Token for the (name, args) pair.
//   - LocalQueryResult reads the backend's locally buffered result for a
//     query, without any network round-trip.
//   - Action and Mutation run remote functions to completion.
//   - SetAuth/ClearAuth manage the authentication token fetcher.
//   - OnTransition registers the single callback invoked with a batch of
//     changed tokens whenever the backend's state advances.
//
// Local is a process-local Backend for tests, benchmarks and offline
// development. It canonicalizes tokens itself (query name plus an
// xxhash64 of the JSON-encoded arguments) and delivers a transition for
// every Publish.
package backend
