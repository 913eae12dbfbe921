package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/unklstewy/whats-overhead/internal/overhead"
	"github.com/unklstewy/whats-overhead/internal/position"
	"github.com/unklstewy/whats-overhead/pkg/coordinates"
	"github.com/unklstewy/whats-overhead/pkg/format"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

var (
	onceJSON bool
	onceMode string
	onceLat  float64
	onceLon  float64
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Print the selected aircraft once and exit",
	Long: "once polls the feed a single time and prints the card. --lat/--lon override the " +
		"configured observer; --mode overrides the stored mode without saving it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
			c := coordinates.Coordinate{Latitude: onceLat, Longitude: onceLon}
			if !c.Valid() {
				return fmt.Errorf("observer position %v out of range", c)
			}
			a.provider = position.Static{Coordinate: c}
		}

		snap, err := runOnce(ctx, a, onceMode)
		if err != nil {
			return err
		}
		return printSnapshot(cmd.OutOrStdout(), snap, a.cfg.ADSB.SearchRadiusNM, a.cfg.Display.ShowMagnetic, onceJSON)
	},
}

func init() {
	onceCmd.Flags().BoolVar(&onceJSON, "json", false, "Print the snapshot as JSON")
	onceCmd.Flags().StringVar(&onceMode, "mode", "", "Selection mode (near or overhead)")
	onceCmd.Flags().Float64Var(&onceLat, "lat", 0, "Observer latitude")
	onceCmd.Flags().Float64Var(&onceLon, "lon", 0, "Observer longitude")
}

// runOnce polls once. A mode given on the command line applies to this run
// only.
func runOnce(ctx context.Context, a *app, mode string) (overhead.Snapshot, error) {
	svc := a.service(ctx)

	if mode == "" {
		return svc.Refresh(ctx), nil
	}

	m, err := selection.ParseMode(mode)
	if err != nil {
		return overhead.Snapshot{}, err
	}
	observer, err := a.provider.Current(ctx)
	if err != nil {
		return overhead.Snapshot{Mode: m, Error: position.Message(err)}, nil
	}
	snap, _ := overhead.Lookup(ctx, a.source, observer, a.cfg.ADSB.SearchRadiusNM, m)
	return snap, nil
}

type onceOutput struct {
	overhead.Snapshot
	Card format.PlaneCard `json:"card"`
}

func printSnapshot(w io.Writer, snap overhead.Snapshot, radiusNM float64, magnetic, asJSON bool) error {
	card := snap.Card(magnetic)

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(onceOutput{Snapshot: snap, Card: card}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Location: %s   Range: %s   Last update: %s\n\n",
			format.Location(snap.Observer), format.Range(radiusNM), format.LastUpdate(snap.UpdatedAt))
		fmt.Fprint(w, plainCard(card))
	}

	if snap.Error != "" {
		return errors.New(snap.Error)
	}
	return nil
}
