package logging

import (
	"go.uber.org/zap"
)

// New builds the application logger. Production gets JSON output with
// sampling; anything else gets the human-readable development encoder.
func New(environment string) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
