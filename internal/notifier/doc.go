// Package notifier delivers reminder messages asynchronously.
//
// Notify enqueues; a small worker pool drains the queue through a token
// bucket and retries transient transport failures with jittered backoff.
// Identical messages to the same target are suppressed for DedupWindow. The
// suppression window is also written to the store so a restart does not
// repeat a reminder that was just sent.
//
// Delivery itself is delegated to a transport.Adapter (the log adapter or
// Telegram).
package notifier
