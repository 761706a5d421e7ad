package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/config"
	"github.com/aristath/sentinel-dashboard/internal/database"
)

// InitializeDatabases opens client_data.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// client_data.db - session tokens; durable so a refresh survives a crash
	clientDataDB, err := database.New(database.Config{
		Path:    cfg.CredentialsDBPath(),
		Profile: database.ProfileDurable,
		Name:    "client_data",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client_data database: %w", err)
	}

	if err := clientDataDB.Migrate(); err != nil {
		clientDataDB.Close()
		return nil, fmt.Errorf("failed to apply client_data schema: %w", err)
	}
	container.ClientDataDB = clientDataDB

	log.Info().Str("path", clientDataDB.Path()).Msg("Database initialized")
	return container, nil
}
