// Package history keeps a local record of published simulation cycles in
// SQLite.
//
// Each row stores the cycle summary together with the exact payload that
// was sent to the broker, so a run can be inspected after the fact even
// when the time-series database is unavailable.
package history
