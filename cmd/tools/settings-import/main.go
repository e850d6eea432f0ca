// cmd/tools/settings-import/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/database"
	"graphwise-relay/internal/settings"
)

type importOptions struct {
	configPath string
	filePath   string
	dryRun     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "settings-import",
		Short: "Seed the relay settings store",
		Long: `Write the relay runtime settings to the Postgres settings store.

Values come from the relay configuration (config file and environment) and,
when --file is given, from a YAML map of setting name to value which takes
precedence. Secrets are masked in all output.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			var store settings.Store
			if !opts.dryRun {
				pg, err := database.NewPostgres(cfg.Database.Postgres)
				if err != nil {
					return err
				}
				defer pg.Close()
				if err := pg.Ping(cmd.Context()); err != nil {
					return err
				}
				pgStore := settings.NewPostgresStore(pg.GetDB())
				if err := pgStore.EnsureSchema(cmd.Context()); err != nil {
					return err
				}
				store = pgStore
			}

			return runImport(cmd.Context(), cfg, opts, store, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "relay config file (default: configs/config.yaml lookup)")
	cmd.Flags().StringVarP(&opts.filePath, "file", "f", "", "YAML file of setting overrides")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the resulting settings without writing them")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// runImport builds the settings from cfg and the optional override file,
// validates them and saves them unless this is a dry run.
func runImport(ctx context.Context, cfg *config.Config, opts *importOptions, store settings.Store, out io.Writer) error {
	changes := settings.FromConfig(cfg).Values()

	if opts.filePath != "" {
		overrides, err := readOverrides(opts.filePath)
		if err != nil {
			return err
		}
		for k, v := range overrides {
			changes[k] = v
		}
	}

	// Unset values are left to whatever the store already holds.
	for k, v := range changes {
		if v == "" {
			delete(changes, k)
		}
	}

	snap, err := settings.FromConfig(cfg).With(changes)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	masked := snap.Masked()
	names := make([]string, 0, len(changes))
	for k := range changes {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(out, "%-28s %s\n", k, masked[k])
	}

	if opts.dryRun {
		fmt.Fprintln(out, "dry run: nothing written")
		return nil
	}
	if err := store.Save(ctx, changes); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Fprintf(out, "imported %d settings\n", len(changes))
	return nil
}

func readOverrides(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for k := range overrides {
		if !settings.IsKnownKey(k) {
			return nil, &settings.UnknownKeyError{Key: k}
		}
	}
	return overrides, nil
}
