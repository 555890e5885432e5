package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lastmile/core/relay"
)

var relayFile string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Price a relay hop list read from JSON",
	Long: `Reads a relay request such as
{"vehicle_class":"bike","weight_kg":3,"hops":[{"start_node":"A","end_node":"B","distance_km":4}]}
from --file, or stdin when the file is "-", and prints the priced legs.`,
	RunE: runRelay,
}

func init() {
	f := relayCmd.Flags()
	f.StringVar(&settingsPath, "settings", "fare.yaml", "fare settings file")
	f.StringVarP(&relayFile, "file", "f", "-", "relay request file")
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine(settingsPath)
	if err != nil {
		return err
	}
	var r io.Reader = cmd.InOrStdin()
	if relayFile != "-" {
		f, err := os.Open(relayFile)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	var req relay.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("decode relay request: %w", err)
	}
	if req.Now.IsZero() {
		if req.Now, err = parseAt(""); err != nil {
			return err
		}
	}
	plan, err := relay.NewAggregator(engine).Price(req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
