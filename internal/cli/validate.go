package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stardate-formula/internal/app"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a YAML manifest or Ruby formula",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), args[0])
		},
	}
}

func runValidate(ctx context.Context, manifestPath string) error {
	service := newAppService()
	result, err := service.Validate(ctx, app.ValidateRequest{ManifestPath: manifestPath})
	if err != nil {
		return err
	}
	version := result.Version
	if version == "" {
		version = "unversioned"
	}
	fmt.Printf("validated: %s %s (%s)\n", result.Name, version, result.Format)
	return nil
}

type lintOptions struct {
	Strict bool
}

func newLintCommand() *cobra.Command {
	opts := lintOptions{}
	cmd := &cobra.Command{
		Use:   "lint <manifest>...",
		Short: "Check manifest revisions for drift, downgrades and placeholder checksums",
		Args:  checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd.Context(), cmd, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Fail on warnings as well as errors")
	_ = viper.BindPFlag("strict", cmd.Flags().Lookup("strict"))
	return cmd
}

func runLint(ctx context.Context, cmd *cobra.Command, opts lintOptions, paths []string) error {
	service := newAppService()
	result, err := service.Lint(ctx, app.LintRequest{
		ManifestPaths: paths,
		Strict:        resolveBool(cmd, opts.Strict, "strict", "strict"),
	})
	if len(result.Revisions) > 0 {
		fmt.Printf("revisions (oldest first): %d\n", len(result.Revisions))
		for _, label := range result.Revisions {
			fmt.Printf("- %s\n", label)
		}
	}
	for _, finding := range result.Findings {
		fmt.Printf("%-7s %-20s %s: %s\n", finding.Severity, finding.Code, finding.Revision, finding.Message)
	}
	if err != nil {
		return err
	}
	if len(result.Findings) == 0 {
		fmt.Println("no findings")
	}
	return nil
}
