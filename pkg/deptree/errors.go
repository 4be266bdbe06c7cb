package deptree

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("deptree: configuration error")

// ConfigurationError reports options that make a walk impossible. It is the
// only error Build, BuildTree and BuildList return; per-file read, parse and
// resolution failures degrade to zero dependencies instead.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("deptree: invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
