package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/cli"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/services/decoder"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

func newRootCommand() *cobra.Command {
	root := cli.NewRootCommand("model4916-decoder", "Decode Model 4916 uplinks from the network server", version, run)
	root.AddCommand(newDecodeCommand())
	return root
}

func newDecodeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "decode <hex payload>",
		Short: "Decode a captured payload and print the record as JSON",
		Args:  cobra.MinimumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			b, outcome, err := decoder.DecodeHex(strings.Join(args, " "), port)
			if err != nil {
				return errors.Wrap(err, outcome)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", format27.Port, "LoRaWAN port the payload was received on")
	return cmd
}
