package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultYAML = `# jobstore config
# Priority: CLI flag > environment (JOBSTORE_*) > this file > default.

db_path:   "jobstore.db"
prefix:    "hangfire"
log_level: "info"

poll_interval:        "15s"
invisibility_timeout: "30m"
expiration_interval:  "1h"
aggregate_interval:   "5m"
lock_lifetime:        "30s"

queues:      ["default"]
workers:     4
max_retries: 3
job_timeout: "0s"       # 0 disables the per-job deadline
http_addr:   ":8080"
`

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration.

If --config is given the file is written to that path.
Otherwise it is written to ~/.jobstore/jobstore.yaml.
Fails if the file already exists unless --force is passed.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		dest := cfgFile
		if dest == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("home dir: %w", err)
			}
			dest = filepath.Join(home, ".jobstore", "jobstore.yaml")
		}
		return writeDefaultConfig(dest, initForce)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
}

func writeDefaultConfig(dest string, force bool) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", dest, err)
		}
	}
	if err := os.WriteFile(dest, []byte(defaultYAML), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("config written to %s\n", dest)
	return nil
}
