package router

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ospfd/ospfd/pkg/engine"
	"github.com/ospfd/ospfd/pkg/engine/auth"
)

// Config is the body of a CONFIG control message: one router's complete
// OSPF configuration, encoded as YAML on the wire. Everything addresses and
// IDs are dotted-quad strings, matching how OSPF identifiers are written
// everywhere else in the system.
type Config struct {
	Areas          []AreaConfig     `yaml:"areas"`
	Interfaces     []IfcConfig      `yaml:"interfaces"`
	Ranges         []RangeConfig    `yaml:"ranges,omitempty"`
	Hosts          []HostConfig     `yaml:"hosts,omitempty"`
	VirtualLinks   []VLConfig       `yaml:"virtual_links,omitempty"`
	ExternalRoutes []ExtRouteConfig `yaml:"external_routes,omitempty"`

	ASExternalLimit  int   `yaml:"as_external_limit,omitempty"`
	ExitOverflowSecs int64 `yaml:"exit_overflow_seconds,omitempty"`
}

// AreaConfig declares one area.
type AreaConfig struct {
	ID              string `yaml:"id"`
	Stub            bool   `yaml:"stub,omitempty"`
	StubDefaultCost uint32 `yaml:"stub_default_cost,omitempty"`
}

// IfcConfig declares one interface.
type IfcConfig struct {
	PhyInt        int             `yaml:"phyint"`
	Area          string          `yaml:"area"`
	Addr          string          `yaml:"addr"`
	Mask          string          `yaml:"mask"`
	Type          string          `yaml:"type"` // broadcast, p2p, nbma, p2mp
	Priority      uint8           `yaml:"priority,omitempty"`
	Cost          uint16          `yaml:"cost,omitempty"`
	HelloInterval uint16          `yaml:"hello_interval,omitempty"`
	DeadInterval  uint32          `yaml:"dead_interval,omitempty"`
	Neighbors     []NbrConfig     `yaml:"neighbors,omitempty"`
	AuthKeys      []AuthKeyConfig `yaml:"auth_keys,omitempty"`
}

// NbrConfig statically declares a neighbor (NBMA/point-to-multipoint).
type NbrConfig struct {
	Addr     string `yaml:"addr"`
	RouterID string `yaml:"router_id"`
	Priority uint8  `yaml:"priority,omitempty"`
}

// AuthKeyConfig declares one authentication key.
type AuthKeyConfig struct {
	KeyID  uint8  `yaml:"key_id"`
	Type   string `yaml:"type"` // simple, md5
	Secret string `yaml:"secret"`
}

// RangeConfig declares an area address range.
type RangeConfig struct {
	Area     string `yaml:"area"`
	Net      string `yaml:"net"`
	Mask     string `yaml:"mask"`
	Suppress bool   `yaml:"suppress,omitempty"`
}

// HostConfig declares a directly attached host route.
type HostConfig struct {
	Addr string `yaml:"addr"`
	Cost uint16 `yaml:"cost"`
	Area string `yaml:"area"`
}

// VLConfig declares a virtual link.
type VLConfig struct {
	Peer          string `yaml:"peer"`
	TransitArea   string `yaml:"transit_area"`
	HelloInterval uint16 `yaml:"hello_interval,omitempty"`
	DeadInterval  uint32 `yaml:"dead_interval,omitempty"`
}

// ExtRouteConfig declares an externally redistributed route.
type ExtRouteConfig struct {
	Net    string `yaml:"net"`
	Mask   string `yaml:"mask"`
	Metric uint32 `yaml:"metric"`
	Type2  bool   `yaml:"type2,omitempty"`
	Tag    uint32 `yaml:"tag,omitempty"`
}

// ParseConfig decodes a CONFIG message body.
func ParseConfig(body []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("sim: config: %w", err)
	}
	for i := range cfg.Interfaces {
		ic := &cfg.Interfaces[i]
		if ic.HelloInterval == 0 {
			ic.HelloInterval = 10
		}
		if ic.DeadInterval == 0 {
			ic.DeadInterval = 4 * uint32(ic.HelloInterval)
		}
		if ic.Cost == 0 {
			ic.Cost = 1
		}
	}
	return cfg, nil
}

// Encode renders cfg as a CONFIG message body.
func (c *Config) Encode() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseAddr parses a dotted-quad address into its 32-bit form; the
// controller uses it when assembling the global address map.
func ParseAddr(s string) uint32 { return parseID(s) }

// parseID parses a dotted-quad identifier (router ID, area ID, address)
// into its 32-bit form; a bare integer string also works for area IDs.
func parseID(s string) uint32 {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		// Allow "0", "1", ... for area IDs.
		var v uint32
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			return v
		}
		return 0
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

func ifaceType(s string) engine.IfaceType {
	switch strings.ToLower(s) {
	case "p2p", "point-to-point":
		return engine.IfacePointToPoint
	case "nbma":
		return engine.IfaceNBMA
	case "p2mp", "point-to-multipoint":
		return engine.IfacePointToMultipoint
	default:
		return engine.IfaceBroadcast
	}
}

func authType(s string) auth.Type {
	switch strings.ToLower(s) {
	case "simple":
		return auth.TypeSimple
	case "md5":
		return auth.TypeMD5
	default:
		return auth.TypeNone
	}
}
