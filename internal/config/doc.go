// Package config loads, validates, and provides access to ytcourier
// configuration from TOML files and the environment.
package config
