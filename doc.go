// Package kontomanager is a client for the kontomanager.at family of
// carrier self-service portals. It maintains a time-boxed authenticated
// session, sends short messages either synchronously or through a
// rate-limited dispatch queue, and reads account data (selected numbers,
// quota usage) from the portal pages.
//
// # Sessions
//
// The portal gives no explicit logout signal, so the client infers session
// validity purely from the time elapsed since the last successful login
// (WithSessionTimeout, default ten minutes). Staleness is detected lazily at
// the next operation; there is no background timer. Around the timeout
// boundary two operations may therefore disagree about Connected(), which is
// accepted: every operation that needs a live session re-validates, and a
// mid-send expiry is recovered by exactly one reconnect-and-resend.
//
// # Concurrency
//
// A client runs at most one background goroutine: the queue consumer created
// by WithQueue. The session timestamp and the admission counter are mutated
// without locks, relying on the precondition that only one goroutine sends
// or connects at a time. This holds in the supported configurations — either
// purely synchronous use, or queued use where the consumer is the only
// sender. Issuing synchronous sends while the queue is enabled violates the
// precondition and is a misuse of the API.
//
// # Rate limiting
//
// The admission counter is advisory: it tracks this client's own outcomes in
// a sliding window and delays the consumer when the budget is exhausted or a
// run of failures suggests the carrier is pushing back. It is not a global
// lock and cannot see sends performed by other clients or devices.
package kontomanager
