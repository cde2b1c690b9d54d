package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/monitor"
	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show protocol state",
}

func init() {
	showCmd.AddCommand(showStatsCmd)
	showCmd.AddCommand(showAreasCmd)
	showCmd.AddCommand(showInterfacesCmd)
	showCmd.AddCommand(showNeighborsCmd)
	showCmd.AddCommand(showRoutesCmd)
}

var showStatsCmd = &cobra.Command{
	Use:   "statistics",
	Short: "Show process-wide statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		s, err := c.Statistics()
		if err != nil {
			return err
		}
		fmt.Printf("Router ID:        %s\n", ospf.RouterID(s.RouterID))
		fmt.Printf("Areas:            %d\n", s.Areas)
		fmt.Printf("Interfaces:       %d\n", s.Interfaces)
		fmt.Printf("Neighbors:        %d (%d full)\n", s.Neighbors, s.FullNbrs)
		fmt.Printf("AS-external LSAs: %d\n", s.ASExternals)
		fmt.Printf("Routes:           %d\n", s.Routes)
		fmt.Printf("Packets received: %d (%d dropped)\n", s.RxPackets, s.RxDropped)
		fmt.Printf("Overflow:         %v\n", s.Flags&1 != 0)
		fmt.Printf("Restarting:       %v\n", s.Flags&2 != 0)
		return nil
	},
}

var showAreasCmd = &cobra.Command{
	Use:   "areas",
	Short: "List configured areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		table := newTable("AREA", "STUB", "TRANSIT", "INTERFACES", "LSAS", "CHECKSUM")
		a, err := c.FirstArea()
		for {
			if errors.Is(err, monitor.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
			table.Append([]string{
				ospf.AreaID(a.Area).String(),
				boolStr(a.Flags&1 != 0),
				boolStr(a.Flags&2 != 0),
				fmt.Sprint(a.Interfaces),
				fmt.Sprint(a.LSAs),
				fmt.Sprintf("0x%08x", a.Checksum),
			})
			a, err = c.Area(a.Area, false)
		}
		table.Render()
		return nil
	},
}

var showInterfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List OSPF interfaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		table := newTable("PHYINT", "ADDRESS", "AREA", "TYPE", "STATE", "COST", "DR", "BDR", "NBRS")
		ifc, err := c.FirstInterface()
		for {
			if errors.Is(err, monitor.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
			table.Append([]string{
				fmt.Sprint(ifc.PhyInt),
				ospf.RouterID(ifc.Addr).String(),
				ospf.AreaID(ifc.Area).String(),
				fmt.Sprint(ifc.Type),
				fmt.Sprint(ifc.State),
				fmt.Sprint(ifc.Cost),
				ospf.RouterID(ifc.DR).String(),
				ospf.RouterID(ifc.BDR).String(),
				fmt.Sprint(ifc.Neighbors),
			})
			ifc, err = c.Interface(ifc.PhyInt, false)
		}
		table.Render()
		return nil
	},
}

var showNeighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "List OSPF neighbors",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		table := newTable("PHYINT", "ROUTER ID", "ADDRESS", "STATE", "PRIORITY", "HELPER")
		n, err := c.FirstNeighbor()
		for {
			if errors.Is(err, monitor.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
			table.Append([]string{
				fmt.Sprint(n.PhyInt),
				ospf.RouterID(n.RouterID).String(),
				ospf.RouterID(n.Addr).String(),
				neighborStateName(n.State),
				fmt.Sprint(n.Priority),
				boolStr(n.Flags&1 != 0),
			})
			n, err = c.Neighbor(n.PhyInt, n.RouterID, false)
		}
		table.Render()
		return nil
	},
}

var showRoutesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Dump the routing table",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		table := newTable("NETWORK", "MASK", "TYPE", "COST", "NEXT HOPS")
		rt, err := c.FirstRoute()
		for {
			if errors.Is(err, monitor.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
			hops := ""
			for i, nh := range rt.NextHops {
				if i > 0 {
					hops += ", "
				}
				hops += fmt.Sprintf("if%d via %s", nh.PhyInt, ospf.RouterID(nh.Gateway))
			}
			table.Append([]string{
				ospf.RouterID(rt.Net).String(),
				ospf.RouterID(rt.Mask).String(),
				pathTypeName(rt.PathType),
				fmt.Sprint(rt.Cost),
				hops,
			})
			rt, err = c.Route(rt.Net, rt.Mask, false)
		}
		table.Render()
		return nil
	},
}

func newTable(headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func boolStr(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func neighborStateName(s uint8) string {
	names := [...]string{"Down", "Attempt", "Init", "2-Way", "ExStart", "Exchange", "Loading", "Full"}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

func pathTypeName(t uint8) string {
	names := [...]string{"intra-area", "inter-area", "type-1-ext", "type-2-ext"}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}
