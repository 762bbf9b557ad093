package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fixpoint/internal/config"
)

// Version is stamped by the build.
var Version = "dev"

type cliFlags struct {
	configFile  string
	workspace   string
	model       string
	complexity  string
	longRunning bool
	verbose     bool
	noColor     bool
	yes         bool
}

// NewRootCommand assembles the fixpoint CLI.
func NewRootCommand() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "fixpoint [request]",
		Short: "Autonomous coding assistant with verified execution",
		Long: `fixpoint runs coding tasks in a plan-act-verify-fix loop.

It sizes the iteration budget from the complexity of the request, verifies
every change with the project's own checks, detects repeating failures, and
asks for consent before running dangerous commands.

Examples:
  fixpoint "fix the failing tests in internal/parser"
  fixpoint --workspace ~/proj "add input validation to the signup handler"
  fixpoint resume cp-0195...     # continue an interrupted task
  fixpoint classify "rm -rf build"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runTask(cmd.Context(), cfg, flags, strings.Join(args, " "))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace directory (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&flags.model, "model", "m", "", "Model to use")
	rootCmd.PersistentFlags().StringVar(&flags.complexity, "complexity", "", "Force a complexity tier: simple, medium, complex, enterprise")
	rootCmd.PersistentFlags().BoolVar(&flags.longRunning, "long-running", false, "Enable checkpoints and human gates for multi-hour tasks")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&flags.yes, "yes", "y", false, "Auto-approve dangerous commands (non-interactive runs)")

	rootCmd.AddCommand(newResumeCommand(flags))
	rootCmd.AddCommand(newCheckpointsCommand(flags))
	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newConfigCommand(flags))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fixpoint %s\n", Version)
		},
	})

	return rootCmd
}

func loadConfig(flags *cliFlags) (*config.Config, error) {
	var opts []config.Option
	if flags.configFile != "" {
		opts = append(opts, config.WithConfigFile(flags.configFile))
	}
	if flags.model != "" {
		opts = append(opts, config.WithOverride("model", flags.model))
	}
	if flags.verbose {
		opts = append(opts, config.WithOverride("verbose", true))
	}
	if flags.noColor {
		opts = append(opts, config.WithOverride("no_color", true))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	return cfg, nil
}

func resolveWorkspace(flags *cliFlags) (string, error) {
	if flags.workspace != "" {
		return flags.workspace, nil
	}
	return os.Getwd()
}

func newConfigCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fixpoint configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			bold := color.New(color.Bold).SprintFunc()
			fmt.Printf("%s\n", bold("Current configuration:"))
			fmt.Printf("  Model:        %s\n", cfg.Model)
			fmt.Printf("  Base URL:     %s\n", cfg.BaseURL)
			fmt.Printf("  API key:      %s\n", maskKey(cfg.APIKey))
			fmt.Printf("  Max tokens:   %d\n", cfg.MaxTokens)
			fmt.Printf("  Temperature:  %.1f\n", cfg.Temperature)
			fmt.Printf("  Verification: %t\n", cfg.VerificationEnabled)
			fmt.Printf("  Checkpoints:  %s\n", cfg.CheckpointDir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithOverride(args[0], args[1]))
			if err != nil {
				return err
			}
			if err := config.Save(cfg, flags.configFile); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) < 12 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}
