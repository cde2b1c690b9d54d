// Package engine implements the protocol-independent OSPFv2 engine: one
// Router per process, owning its areas, interfaces,
// neighbors, link-state databases, routing tables, and multicast forwarding
// cache. The engine never touches the network, a clock, or a kernel route
// table directly - every such operation is expressed through
// pkg/platform.Platform, which a caller supplies at construction time.
//
// The package is organized one file per concern (configuration, hello and
// adjacency formation, database exchange, flooding, SPF, origination)
// rather than one file per type, with doc comments concentrated on the
// externally visible entry points of the engine's public contract.
package engine
