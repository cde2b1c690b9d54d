package commands

import (
	"errors"
	"fmt"
	"net"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/monitor"
	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

var lsaArea string

var lsaCmd = &cobra.Command{
	Use:   "lsdb",
	Short: "Dump a link-state database",
	Long: `Dump the link-state database of one area (plus the AS-external scope).

When --area is not given and more than one area is configured, an
interactive prompt asks which one to dump.`,
	RunE: runLSDB,
}

func init() {
	lsaCmd.Flags().StringVar(&lsaArea, "area", "", "Area ID to dump (dotted-quad)")
}

func runLSDB(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	area, err := resolveArea(c)
	if err != nil {
		return err
	}

	table := newTable("TYPE", "LS-ID", "ADV ROUTER", "SEQ", "AGE", "CHECKSUM")
	count := 0
	// LSA keys are (type, LS-ID, adv-router); type 0 with zero IDs precedes
	// every real key, and AS-scope types chain on after the area scope.
	for _, startType := range []uint8{1, 5} {
		typ, lsid, adv := startType, uint32(0), uint32(0)
		if startType == 1 {
			typ = 0
		}
		for {
			resp, err := c.LSA(area, typ, lsid, adv, false)
			if errors.Is(err, monitor.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
			h := resp.LSA.Header
			if startType == 1 && h.Type.Scope() == ospf.ScopeAS {
				break // the AS-external pass prints these
			}
			table.Append([]string{
				h.Type.String(),
				ospf.RouterID(h.LSID).String(),
				h.AdvRouter.String(),
				fmt.Sprintf("0x%08x", uint32(h.SequenceNumber)),
				fmt.Sprint(h.AgeValue()),
				fmt.Sprintf("0x%04x", h.Checksum),
			})
			count++
			typ, lsid, adv = uint8(h.Type), h.LSID, uint32(h.AdvRouter)
		}
	}
	table.Render()
	fmt.Printf("\n%d LSAs\n", count)
	return nil
}

// resolveArea turns the --area flag into an area ID, prompting when absent
// and ambiguous.
func resolveArea(c *monitor.Client) (uint32, error) {
	if lsaArea != "" {
		ip := net.ParseIP(lsaArea)
		if ip == nil {
			return 0, fmt.Errorf("area %q is not a dotted-quad", lsaArea)
		}
		return uint32(ospf.RouterIDFromIP(ip)), nil
	}

	var areas []uint32
	a, err := c.FirstArea()
	for {
		if errors.Is(err, monitor.ErrNotFound) {
			break
		}
		if err != nil {
			return 0, err
		}
		areas = append(areas, a.Area)
		a, err = c.Area(a.Area, false)
	}
	switch len(areas) {
	case 0:
		return 0, fmt.Errorf("no areas configured")
	case 1:
		return areas[0], nil
	}

	items := make([]string, len(areas))
	for i, id := range areas {
		items[i] = ospf.AreaID(id).String()
	}
	prompt := promptui.Select{Label: "Area", Items: items}
	idx, _, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return areas[idx], nil
}
