package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stardate-formula/internal/app"
)

type historyOptions struct {
	Name  string
	Limit int
}

func newHistoryCommand() *cobra.Command {
	opts := historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded install attempts",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "Only show this package")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum entries (0 = all)")
	return cmd
}

func runHistory(ctx context.Context, opts historyOptions) error {
	service := newAppService()
	result, err := service.History(ctx, app.HistoryRequest{
		StateDir: viper.GetString("state_dir"),
		Name:     opts.Name,
		Limit:    opts.Limit,
	})
	if err != nil {
		return err
	}
	if len(result.Entries) == 0 {
		fmt.Println("no installs recorded")
		return nil
	}
	for _, entry := range result.Entries {
		line := fmt.Sprintf("%s %s %s %s %s", entry.CompletedAt.Local().Format(time.RFC3339), entry.Name, entry.Version, entry.Status, entry.Prefix)
		if entry.Error != "" {
			line += " (" + entry.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}

type inspectOptions struct {
	Prefix string
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect [manifest]",
		Short: "Summarise a manifest and, with --prefix, its install receipt",
		Args:  checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := ""
			if len(args) == 1 {
				manifestPath = args[0]
			}
			return runInspect(cmd.Context(), cmd, opts, manifestPath)
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Install prefix holding a receipt")
	return cmd
}

func runInspect(ctx context.Context, cmd *cobra.Command, opts inspectOptions, manifestPath string) error {
	service := newAppService()
	prefix := ""
	if flagChanged(cmd, "prefix") || manifestPath == "" {
		prefix = resolveString(cmd, opts.Prefix, "prefix", "prefix")
	}
	result, err := service.Inspect(ctx, app.InspectRequest{ManifestPath: manifestPath, Prefix: prefix})
	if err != nil {
		return err
	}
	if manifest := result.Manifest; manifest != nil {
		fmt.Printf("name: %s\n", manifest.Metadata.Name)
		fmt.Printf("version: %s\n", result.Version)
		fmt.Printf("homepage: %s\n", manifest.Metadata.Homepage)
		fmt.Printf("url: %s\n", manifest.Source.URL)
		fmt.Printf("sha256: %s\n", manifest.Source.SHA256)
		if len(manifest.DependsOn) > 0 {
			fmt.Printf("depends_on: %s\n", strings.Join(manifest.DependsOn, ", "))
		}
		fmt.Println("install:")
		for _, mapping := range manifest.Install {
			fmt.Printf("- %s %s -> %s\n", mapping.Kind, mapping.From, mapping.To)
		}
		fmt.Printf("test: %s\n", strings.Join(manifest.Test.Command, " "))
	}
	if receipt := result.Receipt; receipt != nil {
		fmt.Printf("receipt: %s\n", receipt.ID)
		fmt.Printf("status: %s\n", receipt.Status)
		fmt.Printf("installed_at: %s\n", receipt.InstalledAt.Local().Format(time.RFC3339))
		fmt.Printf("files: %d\n", len(receipt.Files))
		for _, file := range receipt.Files {
			fmt.Printf("- %s\n", file.Path)
		}
	}
	return nil
}
