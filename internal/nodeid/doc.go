/*
Package nodeid provides a structured, type-safe representation for node
addresses within an ensemble snapshot.

A node is addressed by up to four keys, outermost first: the realization
index (iens), the stage id, the step id and the job id. The canonical string
form spells each level out,

	reals.3.stages.0.steps.1.jobs.4

and shorter prefixes address whole subtrees (`reals.3` is realization 3).

This package centralizes all formatting and parsing logic so that the
snapshot store, the wire protocol and the monitors agree on one format.
*/
package nodeid
