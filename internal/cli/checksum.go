package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"stardate-formula/internal/app"
)

type checksumOptions struct {
	Manifest string
	Write    bool
}

func newChecksumCommand() *cobra.Command {
	opts := checksumOptions{}
	cmd := &cobra.Command{
		Use:   "checksum [file|url]",
		Short: "Compute a SHA-256 and optionally write it into a manifest",
		Args:  checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return runChecksum(cmd.Context(), opts, target)
		},
	}
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "Manifest whose source.url is hashed when no target is given")
	cmd.Flags().BoolVar(&opts.Write, "write", false, "Replace the manifest's sha256 with the computed digest")
	return cmd
}

func runChecksum(ctx context.Context, opts checksumOptions, target string) error {
	service := newAppService()
	result, err := service.Checksum(ctx, app.ChecksumRequest{
		Target:       target,
		ManifestPath: opts.Manifest,
		Write:        opts.Write,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", result.SHA256, result.Target)
	switch {
	case result.Written:
		fmt.Printf("updated %s (was %s)\n", opts.Manifest, result.Previous)
	case opts.Write:
		fmt.Printf("%s already declares this checksum\n", opts.Manifest)
	}
	return nil
}

func newConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert between the YAML manifest and the Ruby formula",
		Args:  checkArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), args[0], args[1])
		},
	}
}

func runConvert(ctx context.Context, input string, output string) error {
	service := newAppService()
	result, err := service.Convert(ctx, app.ConvertRequest{InputPath: input, OutputPath: output})
	if err != nil {
		return err
	}
	fmt.Printf("converted %s to %s: %s\n", result.Name, result.Format, output)
	return nil
}
