package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/withgalaxy/devbridge/pkg/config"
)

var (
	initYes    bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a devbridge config file",
	Long:  `Create devbridge.toml (or devbridge.yaml) in the project root`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "accept the defaults without prompting")
	initCmd.Flags().StringVar(&initFormat, "format", "toml", "config format (toml or yaml)")
	rootCmd.AddCommand(initCmd)
}

type initAnswers struct {
	Entry     string
	Port      string
	Platforms []string
	Format    string
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := rootDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = cwd
	}

	for _, name := range config.FileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return fmt.Errorf("%s already exists in %s", name, dir)
		}
	}

	defaults := config.DefaultConfig()
	answers := initAnswers{
		Entry:     defaults.Entry,
		Port:      strconv.Itoa(defaults.Server.Port),
		Platforms: defaults.Resolver.Platforms,
		Format:    initFormat,
	}

	if !initYes {
		questions := []*survey.Question{
			{
				Name:     "entry",
				Prompt:   &survey.Input{Message: "Bundle entry file:", Default: answers.Entry},
				Validate: survey.Required,
			},
			{
				Name:     "port",
				Prompt:   &survey.Input{Message: "Server port:", Default: answers.Port},
				Validate: validatePort,
			},
			{
				Name: "platforms",
				Prompt: &survey.MultiSelect{
					Message: "Target platforms:",
					Options: []string{"ios", "android", "web", "windows", "macos"},
					Default: answers.Platforms,
				},
				Validate: survey.MinItems(1),
			},
			{
				Name: "format",
				Prompt: &survey.Select{
					Message: "Config format:",
					Options: []string{"toml", "yaml"},
					Default: answers.Format,
				},
			},
		}
		if err := survey.Ask(questions, &answers); err != nil {
			return err
		}
	}

	path, err := writeInitConfig(dir, answers)
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Created %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  devbridge serve")
	return nil
}

func validatePort(ans interface{}) error {
	s, _ := ans.(string)
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %s", s)
	}
	return nil
}

func writeInitConfig(dir string, answers initAnswers) (string, error) {
	cfg := config.DefaultConfig()
	cfg.Entry = answers.Entry
	if len(answers.Platforms) > 0 {
		cfg.Resolver.Platforms = answers.Platforms
	}
	if answers.Port != "" {
		if err := validatePort(answers.Port); err != nil {
			return "", err
		}
		cfg.Server.Port, _ = strconv.Atoi(answers.Port)
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var name string
	switch answers.Format {
	case "", "toml":
		name = "devbridge.toml"
	case "yaml", "yml":
		name = "devbridge.yaml"
	default:
		return "", fmt.Errorf("unknown config format: %s", answers.Format)
	}

	path := filepath.Join(dir, name)
	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}
