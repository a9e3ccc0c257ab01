package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/logging"
)

// scanRow is one line of `vbinode scan` output.
type scanRow struct {
	SourceIndex int    `json:"source_index"`
	Chip        string `json:"chip"`
	ChipType    string `json:"chip_type"`
	Location    string `json:"location"`
	Subsystem   string `json:"subsystem"`
	Card        string `json:"card"`
	CardModel   int    `json:"card_model"`
}

// CreateScanCmd creates the scan command.
func CreateScanCmd() *cobra.Command {
	var hw HardwareOptions
	var asJSON bool

	c := &cobra.Command{
		Use:   "scan",
		Short: "Scan the PCI bus for supported capture cards",
		Long: `Loads the I/O layer, lists every supported capture chip in bus order and ` +
			`autodetects the card model of each one. Cards locked by another process are skipped ` +
			`during detection.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			h, err := NewHardware(hw)
			if err != nil {
				return err
			}
			defer h.Controller.Close()

			rows, err := scanCards(h.Controller)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			printScan(c.OutOrStdout(), rows)
			return nil
		},
	}
	addHardwareFlags(c, &hw)
	c.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return c
}

func addHardwareFlags(c *cobra.Command, hw *HardwareOptions) {
	c.Flags().StringVar(&hw.IO, "io", IOSysfs, "I/O layer (sysfs, sim)")
	c.Flags().StringVar(&hw.SimCards, "sim-cards", "", "TOML file with simulated cards (--io sim)")
	c.Flags().StringVar(&hw.Root, "sysfs-root", "", "sysfs PCI device directory")
	c.Flags().StringVar(&hw.LockDir, "lock-dir", "", "Directory for card lock files")
}

func scanCards(ctl *acq.Controller) ([]scanRow, error) {
	r, err := ctl.Scan(true)
	if err != nil {
		return nil, err
	}
	rows := make([]scanRow, len(r.Cards))
	for i, card := range r.Cards {
		row := scanRow{
			SourceIndex: i,
			Chip:        card.ChipName(),
			ChipType:    fmt.Sprintf("%04x:%04x", card.VendorID, card.DeviceID),
			Location:    fmt.Sprintf("%02x:%02x", card.Bus, card.Slot),
			Subsystem:   fmt.Sprintf("%08x", card.SubsystemID),
			Card:        "unknown",
		}
		if p, qerr := ctl.QueryCardParams(i, acq.CardParams{}); qerr == nil {
			row.CardModel = p.CardModel
			if name, ok := ctl.CardName(i, p.CardModel); ok {
				row.Card = name
			}
		} else {
			row.Card = "(" + acq.CodeOf(qerr) + ")"
		}
		rows[i] = row
	}
	return rows, nil
}

func printScan(w io.Writer, rows []scanRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No supported capture cards found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tCHIP\tID\tBUS:SLOT\tSUBSYSTEM\tMODEL\tCARD")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", r.SourceIndex, r.Chip, r.ChipType, r.Location, r.Subsystem, r.CardModel, r.Card)
	}
	_ = tw.Flush()
}
