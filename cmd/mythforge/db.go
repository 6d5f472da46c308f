package main

import (
	"context"
	"fmt"
	"os"

	"mythforge/internal/config"
	"mythforge/internal/store"
	"mythforge/internal/store/postgres"
	"mythforge/internal/store/sqlite"
)

const configFile = "mythforge.yaml"
const schemaFile = "schema.yaml"

func loadProject() (*config.ProjectConfig, *config.Schema, error) {
	cfg, err := config.LoadProjectConfig(configFile)
	if err != nil {
		return nil, nil, err
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, nil, err
	}

	return cfg, schema, nil
}

// loadSchema falls back to the built-in schema when the project has no
// schema.yaml.
func loadSchema() (*config.Schema, error) {
	if _, err := os.Stat(schemaFile); os.IsNotExist(err) {
		return config.DefaultSchema(), nil
	}
	return config.LoadSchema(schemaFile)
}

func openDB(ctx context.Context, cfg *config.ProjectConfig, schema *config.Schema) (store.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqlite.New(ctx, cfg.Database.DSN, schema)
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN, schema)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
