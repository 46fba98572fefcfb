// Package scheduler fires daily reminder triggers.
//
// Each installed reminder gets exactly one trigger, keyed by reminder.Key.
// A trigger computes its next occurrence of HH:MM strictly after the current
// clock time, waits on its own timer, hands the text to the Sink, and re-arms
// for the following day. Installing an existing key replaces its trigger.
//
// All times use one process-wide location (Config.Timezone, default Local).
// Clock jumps and DST transitions are not compensated.
package scheduler
