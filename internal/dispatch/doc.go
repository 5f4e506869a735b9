// Package dispatch defines how realizations are handed to an execution
// backend and how their completion comes back.
//
// # Why Dispatch Exists
//
// The evaluator does not know how jobs run: on the local machine, through
// a batch queue, or elsewhere. It only needs to submit a realization
// together with the queue and analysis settings, and later learn whether it
// succeeded. Dispatcher is that contract.
//
// # Outcomes
//
// Completion is delivered as Outcome events on a channel instead of
// callbacks. For every accepted submission the dispatcher emits exactly one
// Exit outcome, and when the realization succeeded it emits exactly one Done
// outcome before it. The outcome carries the callback arguments the
// realization was built with.
//
// # Local Driver
//
// LocalDriver is the reference implementation. It keeps pending
// realizations in a FIFO queue, runs at most MaxRunning of them at a time,
// resubmits failed ones up to MaxSubmit times and reports every status
// transition through a Reporter.
package dispatch
