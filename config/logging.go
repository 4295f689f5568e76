package config

import (
	"go.uber.org/zap"
)

// setLogger picks a zap logger for the environment the service runs in
func setLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "local":
		return zap.NewExample(), nil
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
