// Package ospf implements the RFC 2328 OSPFv2 wire format: the common packet
// header, the five packet types (Hello, Database Description, Link State
// Request, Link State Update, Link State Acknowledgment), and the LSA header
// plus one body type per LSA kind (router, network, summary, ASBR-summary,
// AS-external, group-membership per RFC 1584, and opaque per RFC 5250/3623).
//
// Every packet and LSA type has an Encode(*bytes.Buffer) error method and a
// matching DecodeX([]byte) (*X, error) function that preserve the exact
// network-byte-order layout described by the RFC; there is no
// reflection-based marshaling anywhere in this package.
package ospf
