package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/protocol/ospf"
)

var watchCmd = &cobra.Command{
	Use:   "watch-opaque",
	Short: "Stream opaque-LSA notifications",
	Long: `Register as the daemon's opaque-LSA subscriber and print every opaque
LSA it installs or refloods (including RFC 3623 grace-LSAs) until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.RegisterOpaque(); err != nil {
			return err
		}
		fmt.Println("watching opaque LSAs (ctrl-c to stop)")
		for {
			n, err := c.ReadOpaque()
			if err != nil {
				return err
			}
			h := n.LSA.Header
			fmt.Printf("area=%s %s ls-id=%s adv=%s seq=0x%08x age=%d\n",
				ospf.AreaID(n.Area), h.Type, ospf.RouterID(h.LSID), h.AdvRouter,
				uint32(h.SequenceNumber), h.AgeValue())
		}
	},
}
