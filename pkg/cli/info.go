package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/withgalaxy/devbridge/pkg/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display environment information",
	Long:  `Display the resolved configuration for the current project`,
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printInfo(cmd.OutOrStdout(), cfg)
	return nil
}

func printInfo(out io.Writer, cfg *config.Config) {
	fmt.Fprintf(out, "devbridge                v%s\n", Version)
	fmt.Fprintf(out, "Go                       %s\n", runtime.Version())
	fmt.Fprintf(out, "System                   %s (%s)\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "Root                     %s\n", cfg.Root)

	for _, name := range config.FileNames {
		path := filepath.Join(cfg.Root, name)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Config                   %s\n", path)
			break
		}
	}

	entry := filepath.Join(cfg.Root, cfg.Entry)
	if _, err := os.Stat(entry); err != nil {
		fmt.Fprintf(out, "Entry                    %s (missing)\n", cfg.Entry)
	} else {
		fmt.Fprintf(out, "Entry                    %s\n", cfg.Entry)
	}

	fmt.Fprintf(out, "Address                  %s\n", cfg.Addr())
	fmt.Fprintf(out, "Platforms                %s\n", strings.Join(cfg.Resolver.Platforms, ", "))
	if cfg.HMR.Enabled {
		fmt.Fprintf(out, "HMR                      %s\n", cfg.HMR.Path)
	} else {
		fmt.Fprintf(out, "HMR                      disabled\n")
	}
	if cfg.Debugger.Enabled {
		fmt.Fprintf(out, "Debugger                 %s\n", cfg.Debugger.Path)
	} else {
		fmt.Fprintf(out, "Debugger                 disabled\n")
	}
}
