// Package reminder delivers schedule reminders and routes the actions taken
// on them.
//
// Service keeps one timer per schedule id plus an optional cron digest of
// everything due. Firing reminders are handed to a Deliverer (usually the
// notifier) from a supervised worker.
//
// Reminder actions ("complete", "snooze") travel as events on the bus and
// end up in Actions.Handle, which is also what the CLI calls. There is one
// completion path regardless of where the tap came from.
package reminder
