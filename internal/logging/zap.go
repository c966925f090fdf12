// Package logging builds the service-wide zap logger.
package logging

import "go.uber.org/zap"

// NewLogger returns a zap logger: human-readable in development, JSON in
// production. Callers own the final Sync.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
