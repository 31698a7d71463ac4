// Package cadence computes when a recurring care task is next due.
//
// Three policies are supported:
//   - every N days: base + N calendar days (wall-clock time preserved)
//   - day of week: the start of the next matching weekday strictly after base
//   - day of month: the target day at base's hour:minute, clamped to the month length
//
// Base is the last completion if there is one, otherwise the reference time.
// All calendar arithmetic happens in the Calendar's location so DST shifts
// never move a due date to a different day.
package cadence
