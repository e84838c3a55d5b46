package ports

import "go.trai.ch/pipecache/internal/core/domain"

// ConfigLoader defines the interface for loading the project configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load walks up from cwd looking for the config file and returns the resolved configuration.
	// Defaults are returned when no file is found.
	Load(cwd string) (*domain.Config, error)
}
