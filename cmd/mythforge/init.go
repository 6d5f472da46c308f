package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mythforge/internal/config"
)

func initCmd() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new mythforge project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	return cmd
}

func runInit(projectName string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists", configFile)
	}
	if _, err := os.Stat(schemaFile); err == nil {
		return fmt.Errorf("%s already exists", schemaFile)
	}

	configContents := fmt.Sprintf(`project: %s
version: 1

database:
  driver: sqlite
  dsn: sqlite://mythforge.db

content:
  paths:
    - ./content/
  exclude:
    - ./assets/

pipeline:
  workers: 2
`, projectName)
	if err := os.WriteFile(configFile, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}

	schemaContents, err := yaml.Marshal(config.DefaultSchema())
	if err != nil {
		return fmt.Errorf("encoding default schema: %w", err)
	}
	if err := os.WriteFile(schemaFile, schemaContents, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", schemaFile, err)
	}

	return nil
}
