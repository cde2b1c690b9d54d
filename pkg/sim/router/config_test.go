package router

import "testing"

func TestParseConfigDefaults(t *testing.T) {
	body := []byte(`
areas:
  - id: 0.0.0.0
interfaces:
  - phyint: 1
    area: 0.0.0.0
    addr: 10.0.0.1
    mask: 255.255.255.0
    type: p2p
`)
	cfg, err := ParseConfig(body)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	ic := cfg.Interfaces[0]
	if ic.HelloInterval != 10 {
		t.Errorf("hello interval default = %d, want 10", ic.HelloInterval)
	}
	if ic.DeadInterval != 40 {
		t.Errorf("dead interval default = %d, want 4x hello", ic.DeadInterval)
	}
	if ic.Cost != 1 {
		t.Errorf("cost default = %d, want 1", ic.Cost)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	in := &Config{
		Areas: []AreaConfig{{ID: "0.0.0.0"}},
		Interfaces: []IfcConfig{{
			PhyInt: 1, Area: "0.0.0.0", Addr: "10.0.0.1", Mask: "255.255.255.0",
			Type: "broadcast", Priority: 2, Cost: 5, HelloInterval: 10, DeadInterval: 40,
		}},
		ExternalRoutes:  []ExtRouteConfig{{Net: "8.0.0.0", Mask: "255.0.0.0", Metric: 10, Type2: true}},
		ASExternalLimit: 2,
	}
	body, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := ParseConfig(body)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(out.Interfaces) != 1 || out.Interfaces[0].Priority != 2 || out.Interfaces[0].Cost != 5 {
		t.Errorf("interface mismatch: %+v", out.Interfaces)
	}
	if len(out.ExternalRoutes) != 1 || !out.ExternalRoutes[0].Type2 {
		t.Errorf("external route mismatch: %+v", out.ExternalRoutes)
	}
	if out.ASExternalLimit != 2 {
		t.Errorf("as_external_limit = %d", out.ASExternalLimit)
	}
}

func TestParseID(t *testing.T) {
	cases := map[string]uint32{
		"1.1.1.1":       0x01010101,
		"255.255.255.0": 0xffffff00,
		"0":             0,
		"3":             3,
	}
	for in, want := range cases {
		if got := parseID(in); got != want {
			t.Errorf("parseID(%q) = %08x, want %08x", in, got, want)
		}
	}
}

func TestIfaceTypeParsing(t *testing.T) {
	if ifaceType("p2p").String() != "point-to-point" {
		t.Error("p2p alias not recognized")
	}
	if ifaceType("broadcast").String() != "broadcast" {
		t.Error("broadcast not recognized")
	}
	if ifaceType("").String() != "broadcast" {
		t.Error("empty type should default to broadcast")
	}
}
