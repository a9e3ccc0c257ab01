package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/logging"
	"github.com/smazurov/vbinode/internal/store"
)

// ErrInvalidHardware is returned by the check command when the stored
// configuration no longer matches the installed cards.
var ErrInvalidHardware = errors.New("hardware configuration does not match the installed cards")

// CreateCheckCmd creates the check command.
func CreateCheckCmd() *cobra.Command {
	var hw HardwareOptions
	var hardwareFile string

	c := &cobra.Command{
		Use:   "check",
		Short: "Validate the stored hardware configuration",
		Long: `Scans the bus and checks that the card, chip, model and input stored in the ` +
			`hardware file still describe an installed card. Exits non-zero when they do not, ` +
			`so it can gate the service start.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			stored, err := store.Decode(hardwareFile)
			if err != nil {
				return err
			}
			h, err := NewHardware(hw)
			if err != nil {
				return err
			}
			defer h.Controller.Close()

			// scan failures fall back to the unscanned checks
			_, _ = h.Controller.Scan(false)

			a := stored.Acquisition
			ok := h.Controller.CheckCardParams(acq.CheckRequest{
				Driver:      a.Driver,
				SourceIndex: a.SourceIndex,
				ChipType:    a.ChipType,
				CardModel:   a.CardModel,
				TunerType:   a.TunerType,
				PLLType:     a.PLLType,
				Input:       stored.Input.Source,
			})
			out := c.OutOrStdout()
			fmt.Fprintf(out, "driver=%s source_index=%d chip=%s card_model=%d input=%d\n",
				a.Driver, a.SourceIndex, chips.FormatChipType(a.ChipType), a.CardModel, stored.Input.Source)
			if !ok {
				return ErrInvalidHardware
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
	addHardwareFlags(c, &hw)
	c.Flags().StringVar(&hardwareFile, "hardware-file", store.DefaultPath, "Hardware configuration file")
	return c
}
