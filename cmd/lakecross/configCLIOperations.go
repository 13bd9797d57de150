package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/divijg19/lakecross/internal/config"
)

// printConfig renders the configuration, one dotted key per line.
func printConfig(out io.Writer, cfg config.Config, path string) error {
	if path == "" {
		path, _ = config.ConfigPath()
	}
	if path != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", path)
	}

	entries, err := config.Entries(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Current configuration")
	for _, e := range entries {
		value := e.Value
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(out, "%-24s %s\n", e.Key, value)
	}
	return nil
}

// configureEditor scans for editors and returns cfg with the selected one.
func configureEditor(cfg config.Config, in io.Reader, out io.Writer) (config.Config, error) {
	editors := availableEditors()
	if len(editors) == 0 {
		return cfg, errors.New("config: no editors found on PATH")
	}

	fmt.Fprintln(out, "Available editors:")
	for idx, editor := range editors {
		fmt.Fprintf(out, "[%d] %s\n", idx, editor)
	}

	fmt.Fprint(out, "Select editor by index: ")
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return cfg, errors.New("config: no selection provided")
	}
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 0 || idx >= len(editors) {
		return cfg, errors.New("config: invalid editor index")
	}

	cfg.Editor = editors[idx]
	return cfg, nil
}

// promptYesNo asks a yes/no question and returns the user's choice.
func promptYesNo(reader *bufio.Reader, question string) (bool, error) {
	for {
		fmt.Printf("%s [y/n]: ", question)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("read: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(os.Stderr, "Please answer yes or no.")
		}
	}
}

// newConfigCmd handles `lakecross config`.
//
// Edits start from the file alone so that values coming from the environment are never
// written back.
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config [key [value]]",
		Aliases: []string{"c"},
		Short:   "View and change configuration",
		Example: `  lakecross config
  lakecross config rules.optimal_crossings 11
  lakecross config narration.enabled true
  lakecross config editor
  lakecross config edit`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return printConfig(out, a.cfg, a.configPath)
			}

			cfg, err := config.ReadFile(a.configPath)
			if err != nil {
				return err
			}

			key := strings.TrimPrefix(args[0], "--")
			switch {
			case len(args) == 1 && key == "editor":
				if cfg, err = configureEditor(cfg, cmd.InOrStdin(), out); err != nil {
					return err
				}
			case len(args) == 1:
				entries, err := config.Entries(a.cfg)
				if err != nil {
					return err
				}
				for _, e := range entries {
					if e.Key == key {
						fmt.Fprintln(out, e.Value)
						return nil
					}
				}
				return fmt.Errorf("config: unknown key %s", key)
			default:
				if cfg, err = config.Set(cfg, key, args[1]); err != nil {
					return err
				}
			}

			if err := config.Save(a.configPath, cfg); err != nil {
				return err
			}
			return printConfig(out, cfg, a.configPath)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open the configuration in your editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ReadFile(a.configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "config: %v (starting from defaults)\n", err)
				cfg = config.Default()
			}
			edited, err := editConfig(cfg, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := config.Save(a.configPath, edited); err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), edited, a.configPath)
		},
	})
	return cmd
}
