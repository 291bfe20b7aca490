// Package types contains the executor types shared by the application and the
// executor implementations. These are defined separately from the executor
// package so that configuration and CLI code don't need to depend on a specific
// implementation.
package types
