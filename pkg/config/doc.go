// Package config loads the engine's configuration from environment
// variables, with an optional .env file for local development.
package config
