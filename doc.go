// Package gateclient is a client-side HTTP gateway that mediates outbound
// requests to one or more remote APIs. It lets callers issue requests
// without tracking per-endpoint rate limits, transient failures,
// redirects, or prioritization of competing traffic: given a method, URL,
// optional body and optional per-request Config, Client.Send returns a
// normalized ResponseView (or an error) while guaranteeing that combined
// traffic to any rate-limit group never exceeds that group's published
// per-second, per-minute, per-hour and per-day quotas.
//
// The core is four tightly coupled parts:
//
//   - the rate-limit accounting engine (Interval, Window, GroupLimits,
//     adaptively reconfigured from response headers)
//   - the priority-aware admission controller (immediate send, sleep-then-
//     send, or deferred enqueue), implemented in Client.Send
//   - the request queue and pump (three priority tiers, bounded capacity,
//     fair draining), implemented by RetryQueue
//   - the request lifecycle (retry on rate-limit/transient status, redirect
//     following, cancellation), also implemented in Client.Send
//
// Everything outside those four parts — the wire transport, response
// parsing, credential attachment — is an external collaborator consumed
// through the Transport and ResponseView interfaces.
package gateclient
