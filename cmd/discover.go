package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/vbinode/internal/mdns"
)

// CreateDiscoverCmd creates the discover command.
func CreateDiscoverCmd() *cobra.Command {
	var timeout time.Duration

	c := &cobra.Command{
		Use:   "discover",
		Short: "Find vbinode instances on the local network",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			nodes, err := mdns.Discover(c.Context(), timeout)
			if err != nil {
				return err
			}
			out := c.OutOrStdout()
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No nodes found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tHOST\tPORT\tADDRESSES\tSTATE\tVERSION")
			for _, n := range nodes {
				addrs := make([]string, len(n.Addresses))
				for i, a := range n.Addresses {
					addrs[i] = a.String()
				}
				sort.Strings(addrs)
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					n.Instance, n.Hostname, n.Port, strings.Join(addrs, ","), n.TXT["state"], n.TXT["version"])
			}
			return tw.Flush()
		},
	}
	c.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to browse")
	return c
}
