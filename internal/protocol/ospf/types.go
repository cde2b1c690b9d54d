package ospf

// PacketType identifies one of the five OSPFv2 packet types (RFC 2328 §A.3.1).
type PacketType uint8

const (
	PacketHello PacketType = 1
	PacketDBD   PacketType = 2
	PacketLSR   PacketType = 3
	PacketLSU   PacketType = 4
	PacketLSAck PacketType = 5
)

func (t PacketType) String() string {
	switch t {
	case PacketHello:
		return "Hello"
	case PacketDBD:
		return "DatabaseDescription"
	case PacketLSR:
		return "LinkStateRequest"
	case PacketLSU:
		return "LinkStateUpdate"
	case PacketLSAck:
		return "LinkStateAcknowledgment"
	default:
		return "Unknown"
	}
}

// LSAType identifies the type field of an LSA header (RFC 2328 §A.4.1, plus
// RFC 1584 type 6 and RFC 5250 types 9-11).
type LSAType uint8

const (
	LSARouter        LSAType = 1
	LSANetwork       LSAType = 2
	LSASummary       LSAType = 3 // summary-LSA, IP network
	LSAASBRSummary   LSAType = 4 // summary-LSA, ASBR
	LSAASExternal    LSAType = 5
	LSAGroupMember   LSAType = 6 // RFC 1584 MOSPF
	LSAASExternalNSSA LSAType = 7
	LSAOpaqueLink    LSAType = 9  // link-local scope
	LSAOpaqueArea    LSAType = 10 // area scope
	LSAOpaqueAS      LSAType = 11 // AS scope
)

func (t LSAType) String() string {
	switch t {
	case LSARouter:
		return "Router-LSA"
	case LSANetwork:
		return "Network-LSA"
	case LSASummary:
		return "Summary-LSA"
	case LSAASBRSummary:
		return "ASBR-Summary-LSA"
	case LSAASExternal:
		return "AS-External-LSA"
	case LSAGroupMember:
		return "Group-Membership-LSA"
	case LSAASExternalNSSA:
		return "NSSA-External-LSA"
	case LSAOpaqueLink:
		return "Opaque-LSA(link)"
	case LSAOpaqueArea:
		return "Opaque-LSA(area)"
	case LSAOpaqueAS:
		return "Opaque-LSA(AS)"
	default:
		return "Unknown-LSA"
	}
}

// FloodingScope reports the scope an LSA type floods within.
type FloodingScope int

const (
	ScopeArea FloodingScope = iota
	ScopeAS
	ScopeLink
)

// Scope returns the flooding scope for the LSA type: area for 1/2/3/4/6/10, AS for 5/11, link for 9.
func (t LSAType) Scope() FloodingScope {
	switch t {
	case LSAASExternal, LSAOpaqueAS:
		return ScopeAS
	case LSAOpaqueLink:
		return ScopeLink
	default:
		return ScopeArea
	}
}

// AuType identifies the OSPF authentication type carried in the packet header.
type AuType uint16

const (
	AuNone   AuType = 0
	AuSimple AuType = 1
	AuMD5    AuType = 2
)

// Option bits carried in Hello/DD/LSA option bytes (RFC 2328 §A.2, RFC 1584 MC-bit).
const (
	OptionMC   = 1 << 2 // multicast capable (MOSPF)
	OptionE    = 1 << 1 // AS-external capable
	OptionDC   = 1 << 5 // demand circuit
	OptionO    = 1 << 6 // opaque LSA capable (RFC 5250)
	OptionDNA  = 1 << 3 // restart signaling, reused bit position per local convention
)

// MaxAge and related RFC 2328 §13 constants.
const (
	MaxAge             = 3600 // seconds
	MaxAgeDiff         = 900
	LSRefreshTime      = 1800
	MinLSInterval      = 5
	MinLSArrival       = 1
	DoNotAge           = 0x8000 // high bit of the LS-Age field
	InitialSequenceNum = int32(-0x80000000) + 1
	MaxSequenceNum     = int32(0x7fffffff)
)
