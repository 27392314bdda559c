// Package config loads and validates the server configuration from YAML.
// Secrets (feed credentials, webhook URLs) are never stored in the file;
// the config holds the names of environment variables that carry them.
package config
