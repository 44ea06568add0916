package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stardate-formula/internal/app"
	"stardate-formula/internal/shared"
)

func newFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <manifest>",
		Short: "Download the release artifact into the cache and verify it",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), args[0])
		},
	}
}

func runFetch(ctx context.Context, manifestPath string) error {
	service := newAppService()
	result, err := service.Fetch(ctx, app.FetchRequest{
		ManifestPath: manifestPath,
		CacheDir:     viper.GetString("cache_dir"),
		Keyring:      viper.GetString("keyring"),
	})
	if err != nil {
		return err
	}
	state := "downloaded"
	if result.Cached {
		state = "cached"
	}
	fmt.Printf("%s: %s (%d bytes, sha256 %s)\n", state, result.Path, result.Size, result.SHA256)
	if result.Signer != "" {
		fmt.Printf("signed by: %s\n", result.Signer)
	}
	return nil
}

type installOptions struct {
	Prefix                   string
	SkipDependencies         bool
	SkipTest                 bool
	TestTimeoutSec           int
	DependencyInstallCommand string
}

func newInstallCommand() *cobra.Command {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:   "install <manifest>",
		Short: "Resolve dependencies, fetch, verify, install and smoke test a manifest",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Install prefix (bin/ is created inside it)")
	cmd.Flags().BoolVar(&opts.SkipDependencies, "skip-dependencies", false, "Do not check runtime dependencies")
	cmd.Flags().BoolVar(&opts.SkipTest, "skip-test", false, "Do not run the smoke test")
	cmd.Flags().IntVar(&opts.TestTimeoutSec, "test-timeout", 60, "Smoke test timeout in seconds")
	cmd.Flags().StringVar(&opts.DependencyInstallCommand, "dependency-install-command", "", "Command that installs a missing runtime dependency, %s is the dependency (e.g. \"brew install %s\")")
	_ = viper.BindPFlag("skip_dependencies", cmd.Flags().Lookup("skip-dependencies"))
	_ = viper.BindPFlag("dependency_install_command", cmd.Flags().Lookup("dependency-install-command"))
	return cmd
}

func runInstall(ctx context.Context, cmd *cobra.Command, opts installOptions, manifestPath string) error {
	service := newAppService()
	result, err := service.Install(ctx, app.InstallRequest{
		ManifestPath:     manifestPath,
		Prefix:           resolveString(cmd, opts.Prefix, "prefix", "prefix"),
		CacheDir:         viper.GetString("cache_dir"),
		StateDir:         viper.GetString("state_dir"),
		Keyring:          viper.GetString("keyring"),
		SkipDependencies: resolveBool(cmd, opts.SkipDependencies, "skip_dependencies", "skip-dependencies"),
		SkipTest:         opts.SkipTest,
		TestTimeout:      resolveSeconds(cmd, opts.TestTimeoutSec, "test_timeout_sec", "test-timeout"),
	})
	receipt := result.Receipt
	if receipt.Name != "" {
		fmt.Printf("%s %s: %s (%d files in %s)\n", receipt.Name, receipt.Version, receipt.Status, len(receipt.Files), receipt.Prefix)
		for _, dep := range receipt.Dependencies {
			suffix := ""
			if dep.Installed {
				suffix = " (installed)"
			}
			fmt.Printf("- %s: %s %s%s\n", dep.Dependency, dep.Executable, dep.Version, suffix)
		}
		if len(result.Removed) > 0 {
			fmt.Printf("removed %d files of the previous install\n", len(result.Removed))
		}
	}
	if result.Test != nil && err != nil {
		fmt.Println(shared.Truncate(strings.TrimSpace(result.Test.Output), 2048))
	}
	return err
}

type testOptions struct {
	Prefix         string
	TestTimeoutSec int
}

func newTestCommand() *cobra.Command {
	opts := testOptions{}
	cmd := &cobra.Command{
		Use:   "test <manifest>",
		Short: "Run the manifest's smoke test against an install prefix",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd.Context(), cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Install prefix")
	cmd.Flags().IntVar(&opts.TestTimeoutSec, "test-timeout", 60, "Smoke test timeout in seconds")
	return cmd
}

func runTest(ctx context.Context, cmd *cobra.Command, opts testOptions, manifestPath string) error {
	service := newAppService()
	result, err := service.Test(ctx, app.TestRequest{
		ManifestPath: manifestPath,
		Prefix:       resolveString(cmd, opts.Prefix, "prefix", "prefix"),
		Timeout:      resolveSeconds(cmd, opts.TestTimeoutSec, "test_timeout_sec", "test-timeout"),
	})
	if output := strings.TrimSpace(result.Result.Output); output != "" {
		fmt.Println(shared.Truncate(output, 2048))
	}
	if err != nil {
		return err
	}
	fmt.Printf("smoke test passed: %s (%s)\n", strings.Join(result.Result.Command, " "), result.Result.Duration.Round(time.Millisecond))
	return nil
}

type uninstallOptions struct {
	Prefix string
}

func newUninstallCommand() *cobra.Command {
	opts := uninstallOptions{}
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the files recorded in a prefix's install receipt",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUninstall(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Install prefix")
	return cmd
}

func runUninstall(ctx context.Context, cmd *cobra.Command, opts uninstallOptions) error {
	service := newAppService()
	result, err := service.Uninstall(ctx, app.UninstallRequest{
		Prefix: resolveString(cmd, opts.Prefix, "prefix", "prefix"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("uninstalled: %s (%d files)\n", result.Name, result.Removed)
	return nil
}
