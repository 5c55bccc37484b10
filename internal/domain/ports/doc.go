// Package ports defines the interfaces the application services depend on.
// Concrete implementations live in internal/infrastructure/persistence and
// internal/application/services; tests substitute fakes.
package ports
