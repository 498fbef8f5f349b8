package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// fileConfig holds the defaults a config file may provide. Flags given on the
// command line always win.
type fileConfig struct {
	Cable     string `toml:"cable"`
	Baud      int    `toml:"baud"`
	QueueSize int    `toml:"queue_size"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dcctrace", "config.toml")
}

// applyConfigDefaults fills unset flags from the TOML config file. A missing
// default-location file is fine; an explicit --config that cannot be read is
// fatal.
func applyConfigDefaults(cmd *cobra.Command) error {
	path := configPath
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return nil
		}
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config %s: %w", path, err)
	}
	logrus.Debugf("loaded defaults from %s", path)

	flags := cmd.Flags()
	if fc.Cable != "" && !flags.Changed("cable") {
		if err := flags.Set("cable", fc.Cable); err != nil {
			return err
		}
	}
	if fc.Baud > 0 && !flags.Changed("baud") {
		if err := flags.Set("baud", fmt.Sprint(fc.Baud)); err != nil {
			return err
		}
	}
	if fc.QueueSize > 0 && !flags.Changed("queue-size") {
		if err := flags.Set("queue-size", fmt.Sprint(fc.QueueSize)); err != nil {
			return err
		}
	}
	return nil
}
