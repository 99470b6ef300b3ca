// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file and FILEQUEUE_ environment variables.
// It provides type-safe access to queue, logging and database settings
// while keeping configuration details separate from the queue itself.
package config
