package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configFile holds the structure written to config.yaml when flags supply
// values; otherwise defaultConfigYAML is written verbatim.
type configFile struct {
	DataDir  string `yaml:"data_dir,omitempty"`
	Unit     string `yaml:"unit"`
	LogLevel string `yaml:"log_level"`
}

func newInitCmd(a *app) *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize weightlog configuration and storage",
		Long:  "Create the configuration and data directories, write config.yaml if missing,\nand check that the journal files can be read.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(a.configDir, 0o700); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}

			dataDir := ""
			if a.flags.dataDir != "" {
				dataDir = a.dataDir
			}
			path := filepath.Join(a.configDir, configFileExt)
			written, err := writeConfigIfMissing(path, dataDir, unit)
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			j, err := a.openJournal()
			if err != nil {
				return err
			}
			if _, err := j.Export(); err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}

			out := cmd.OutOrStdout()
			if written {
				fmt.Fprintf(out, "Wrote %s\n", path)
			}
			fmt.Fprintf(out, "weightlog initialized in %s\n", a.dataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "", "unit to record in a new config.yaml (kg or lb)")
	return cmd
}

// writeConfigIfMissing creates config.yaml. It is idempotent: an existing
// file is left untouched and reported as not written.
func writeConfigIfMissing(path, dataDir, unit string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	data := []byte(defaultConfigYAML)
	if dataDir != "" || unit != "" {
		cfg := configFile{DataDir: dataDir, Unit: unit, LogLevel: defaultLogLevel}
		if cfg.Unit == "" {
			cfg.Unit = defaultUnit
		}
		var err error
		if data, err = yaml.Marshal(&cfg); err != nil {
			return false, fmt.Errorf("marshal config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, err
	}
	return true, nil
}
