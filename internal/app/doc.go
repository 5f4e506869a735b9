// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the evaluation lifecycle: load a manifest,
// start the aggregator, dispatch the active realizations and collect their
// outcomes. It is decoupled from any specific entrypoint like a CLI.
package app
