// Package inmemorytopology provides a thread-safe, in-memory implementation
// of the topologystore.Store interface. It holds the fixed job graph of one
// ensemble and the default snapshot of each realization, which fits
// comfortably in memory for any ensemble this tool evaluates.
package inmemorytopology
