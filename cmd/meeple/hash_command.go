package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meeple/internal/config"
)

func newHashCommand(ctx *commandContext) *cobra.Command {
	var algorithm string
	var version string
	var encoding string

	cmd := &cobra.Command{
		Use:   "hash <image>...",
		Short: "Compute perceptual hashes of image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				hash, err := eng.Hash(cmd.Context(), path, algorithm, version)
				if err != nil {
					return fmt.Errorf("hash %s: %w", arg, err)
				}
				var value string
				switch encoding {
				case "hex":
					value = hash.Hex()
				case "base64":
					value = hash.Base64()
				case "raw":
					value = fmt.Sprintf("%d", hash.Raw())
				default:
					return fmt.Errorf("unknown encoding %q (hex, base64, raw)", encoding)
				}
				fmt.Fprintf(out, "%s/%s\t%s\t%s\n", hash.Algorithm, hash.Version, value, arg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Hash algorithm (dhash or blockhash; config default when empty)")
	cmd.Flags().StringVar(&version, "version", "", "Algorithm version (current when empty)")
	cmd.Flags().StringVar(&encoding, "encoding", "hex", "Output encoding: hex, base64, or raw")

	return cmd
}
