// Package delivery hands formatted payloads to their destination.
//
// Delivery is fire-and-forget: Deliver returns immediately and the POST runs
// on its own goroutine, bounded by a semaphore. Failures are logged and
// counted, never retried, and never reported back to the pipeline. In-flight
// deliveries outlive the session that issued them; Wait lets callers that
// care (CLI scan, tests) drain them.
package delivery
