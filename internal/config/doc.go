// Package config loads meetwise settings from environment variables.
//
// Command-line flags registered in the cmd package override the values
// returned by Load. Validate must pass before any component is built.
package config
