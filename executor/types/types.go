package types

import (
	"fmt"
	"strings"
)

// ExecutorType are the supported executor implementations.
type ExecutorType string

// All supported executor implementations.
const (
	ExecutorSQL   ExecutorType = "sql"
	ExecutorGhost ExecutorType = "gh-ost"
	ExecutorMock  ExecutorType = "mock"
)

// ExecutorTypeFromString returns a valid ExecutorType for the given string, or
// an error if the value is invalid.
func ExecutorTypeFromString(val string) (ExecutorType, error) {
	switch ExecutorType(strings.ToLower(val)) {
	case ExecutorSQL:
		return ExecutorSQL, nil
	case ExecutorGhost, "ghost":
		return ExecutorGhost, nil
	case ExecutorMock:
		return ExecutorMock, nil
	}
	return "", fmt.Errorf("unsupported executor type '%s'", val)
}
