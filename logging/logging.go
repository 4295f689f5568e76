package logging

import "go.uber.org/zap"

// New returns a sugared logger named after the component using it. It is
// derived from the global logger, so config.New must run first for the
// environment-specific encoder to apply.
func New(component string) *zap.SugaredLogger {
	return zap.L().Named(component).Sugar()
}
