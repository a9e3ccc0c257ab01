package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/smazurov/vbinode/internal/logging"
	"github.com/smazurov/vbinode/internal/peer"
)

// CreatePeerCmd creates the peer command with its attach and detach
// subcommands. They stand in for a TV application taking and releasing the
// capture card.
func CreatePeerCmd() *cobra.Command {
	var url, name, reason string
	var timeout time.Duration

	c := &cobra.Command{
		Use:   "peer",
		Short: "Announce a cooperating application to a running node",
	}
	c.PersistentFlags().StringVar(&url, "nats-url", nats.DefaultURL, "NATS server URL")
	c.PersistentFlags().StringVar(&name, "name", defaultPeerName(), "Peer name")
	c.PersistentFlags().StringVar(&reason, "reason", "manual", "Reason sent with the announcement")
	c.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the node")

	announce := func(attach bool) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			client := peer.NewClient(url, name, logging.GetLogger("peer"))
			if err := client.Connect(); err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()
			var status peer.StatusMessage
			var err error
			if attach {
				status, err = client.Attach(ctx, reason)
			} else {
				status, err = client.Detach(ctx, reason)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s: state=%s slave=%v card_index=%d\n",
				status.Node, status.State, status.Slave, status.CardIndex)
			return nil
		}
	}

	c.AddCommand(&cobra.Command{
		Use:          "attach",
		Short:        "Take the hardware; the node switches to slave mode",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         announce(true),
	}, &cobra.Command{
		Use:          "detach",
		Short:        "Release the hardware; the node resumes acquisition",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         announce(false),
	})
	return c
}

func defaultPeerName() string {
	host, err := os.Hostname()
	if err != nil {
		return "vbinode-cli"
	}
	return "vbinode-cli@" + host
}
