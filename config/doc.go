// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml, overridden by SVH_-prefixed
// environment variables and validated using struct tags. Empty connection
// settings select the in-memory backends, which is how local runs and tests
// work without Postgres, Redis or an object store.
package config
