// Package config holds the installer options and the layers that build them:
// built-in defaults, an optional YAML file, .env files and the environment,
// and finally command-line flags.
package config
