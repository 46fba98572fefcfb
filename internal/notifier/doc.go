// Package notifier delivers outbound chat messages asynchronously.
//
// Callers enqueue a Notification and return immediately. A small worker pool
// drains the queue through a shared token bucket and sends via the transport
// adapter, so a slow chat API never blocks the caller. Send failures are
// logged and published on the event bus; they are not reported back to the
// caller.
//
// Deliver adapts the service to the scheduler's Sink: a fired reminder becomes
// a "Reminder: <text>" message in the user's private chat.
package notifier
