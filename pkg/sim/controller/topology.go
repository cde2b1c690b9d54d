package controller

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ospfd/ospfd/pkg/sim/router"
)

// topologyFile is the YAML shape of a simulation description: a list of
// routers, each with its router ID and full engine configuration.
type topologyFile struct {
	Routers []topologyRouter `yaml:"routers"`
}

type topologyRouter struct {
	RouterID string        `yaml:"router_id"`
	Config   router.Config `yaml:",inline"`
}

// LoadTopology reads a simulation topology from a YAML file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: reading topology %s: %w", path, err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes a topology document.
func ParseTopology(data []byte) (*Topology, error) {
	tf := &topologyFile{}
	if err := yaml.Unmarshal(data, tf); err != nil {
		return nil, fmt.Errorf("sim: topology: %w", err)
	}
	if len(tf.Routers) == 0 {
		return nil, fmt.Errorf("sim: topology declares no routers")
	}

	t := &Topology{}
	for _, tr := range tf.Routers {
		id := router.ParseAddr(tr.RouterID)
		if id == 0 {
			return nil, fmt.Errorf("sim: router_id %q is not a valid dotted-quad", tr.RouterID)
		}
		cfg := tr.Config
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
		t.Routers = append(t.Routers, RouterTopology{ID: id, Config: &cfg})
	}
	return t, nil
}
