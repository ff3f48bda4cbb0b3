package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kensakudev/kensaku/configs"
	"github.com/kensakudev/kensaku/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage kensaku configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/kensaku/config.yaml)
  3. Project config (.kensaku.yaml)
  4. Environment variables (KENSAKU_*)`,
		Example: `  # Create user config from template
  kensaku config init

  # Create project config in the current directory
  kensaku config init --project

  # Show effective configuration (merged from all sources)
  kensaku config show

  # Print user config file path
  kensaku config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from a template",
		Long: `Create a configuration file from the bundled template.

By default this writes the user config to ~/.config/kensaku/config.yaml
(or $XDG_CONFIG_HOME/kensaku/config.yaml). With --project it instead
writes .kensaku.yaml to the current directory, meant to be committed
alongside the project.`,
		Example: `  kensaku config init
  kensaku config init --project
  kensaku config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if project {
				return runConfigInitProject(cmd, force)
			}
			return runConfigInitUser(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&project, "project", false, "Create a project config (.kensaku.yaml) instead")

	return cmd
}

func runConfigInitUser(cmd *cobra.Command, force bool) error {
	w := cmd.OutOrStdout()
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() && !force {
		fmt.Fprintf(w, "User configuration already exists at %s\n", configPath)
		fmt.Fprintln(w, "Use --force to overwrite it with the template.")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Created user configuration at %s\n", configPath)
	fmt.Fprintln(w, "Edit it to customize settings, then run 'kensaku config show' to verify.")
	return nil
}

func runConfigInitProject(cmd *cobra.Command, force bool) error {
	w := cmd.OutOrStdout()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	configPath := filepath.Join(cwd, ".kensaku.yaml")

	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(w, "Project configuration already exists at %s\n", configPath)
		fmt.Fprintln(w, "Use --force to overwrite it with the template.")
		return nil
	}

	if err := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Created project configuration at %s\n", configPath)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources.

Use --source to inspect a single layer instead of the merged result.`,
		Example: `  kensaku config show
  kensaku config show --json
  kensaku config show --source defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	w := cmd.OutOrStdout()

	var cfg *config.Config
	var sourceDesc string

	switch source {
	case "merged":
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			fmt.Fprintf(w, "No user configuration file found (expected at %s)\n", configPath)
			fmt.Fprintln(w, "Run 'kensaku config init' to create one.")
			return nil
		}
		loaded, err := readConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "project":
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		root, err := config.FindProjectRoot(cwd)
		if err != nil {
			root = cwd
		}

		configPath := filepath.Join(root, ".kensaku.yaml")
		if _, err := os.Stat(configPath); err != nil {
			configPath = filepath.Join(root, ".kensaku.yml")
		}
		if _, err := os.Stat(configPath); err != nil {
			fmt.Fprintf(w, "No project configuration file found under %s\n", root)
			fmt.Fprintln(w, "Run 'kensaku config init --project' to create one.")
			return nil
		}
		loaded, err := readConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		sourceDesc = fmt.Sprintf("project (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (hardcoded)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	fmt.Fprintf(w, "# Configuration source: %s\n", sourceDesc)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(w, string(data))
	return nil
}

// readConfigFile parses a single config file without merging defaults,
// so 'show --source' reflects exactly what the file sets.
func readConfigFile(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
