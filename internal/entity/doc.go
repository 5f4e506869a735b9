// Package entity contains the immutable job-graph model of an ensemble
// evaluation and the builders that assemble it.
//
// The graph has four levels below the Ensemble: Realization, Stage, Step and
// Job. Values are created only through the builders in this package, which
// validate the whole tree before freezing it, so a *ValidationError never
// leaves a half-built entity behind. Once Build has succeeded a builder is
// frozen and any further setter call is recorded as an *ImmutableEntityError
// that the next Build returns.
//
// Built values expose their data through accessor methods that return
// copies; nothing reachable from an Ensemble can be mutated by its readers.
package entity
