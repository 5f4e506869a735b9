// Package client sends state reports from a worker to the aggregator over
// an unreliable connection.
//
// A Client holds at most one open connection. When a send fails it closes
// that connection, waits, reconnects and tries again, up to MaxRetries
// times. The wait before retry k is BaseTimeout * TimeoutMultiplier^(k-1),
// capped at MaxBackoff. When every attempt has failed the caller gets a
// *DeliveryError wrapping the last cause. With DefaultConfig the waits are
// 1s, 2s, 4s, 8s and 10s, so a frame is given up on after at most 25s of
// waiting plus six dial or ack timeouts. Every wait ends early when the
// context is done.
//
// Delivery is at least once: the websocket transport waits for the
// receiver to acknowledge every frame, so a frame is only considered sent
// once the aggregator has it. A frame whose acknowledgement was lost is sent
// again, which the aggregator tolerates because applying a diff twice is a
// no-op.
//
// A Client is not safe for concurrent use. Give each worker its own.
package client
