// Package router is the simulated router harness: it runs
// one protocol engine and stands in for its operating system. Outbound
// packets are wrapped in the simulation envelope and delivered over UDP
// directly to the destination router's port; inbound packets are checked
// against the virtual clock and either processed, forwarded through the
// harness's own routing table, or parked on the delayed queue until their
// timestamp's tick arrives. The harness's routing table is deliberately
// separate from the engine's so that forwarding survives an engine teardown
// during a hitless restart.
package router
