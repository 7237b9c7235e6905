// Package config handles configuration loading for coven-operator.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The file extension picks the decoder: ".toml" uses TOML, every
// other extension uses YAML. Defaults are applied before decoding, so a file
// only needs the keys it changes.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. The --config flag
//  2. Path from COVEN_OPERATOR_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/coven/operator.yaml
//  4. ~/.config/coven/operator.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	matrix:
//	  access_token: "${MATRIX_ACCESS_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	stop_grace: "500ms"
//	tick_interval: "1s"
//	ledger:
//	  retention: "720h"
//
// # Providers
//
// Each built-in provider (claude, codex, gemini) has a section:
//
//	providers:
//	  claude:
//	    path: /usr/local/bin/claude   # default: PATH lookup of the name
//	    models: [opus, sonnet, haiku] # first entry is the default model
//	    display_name: Claude
//	    aggregate: last               # last | concat
//
// A section that omits models keeps the built-in list.
//
// # Validation
//
// Config.Validate reports the first problem with the provider set, message
// limit, durations and logging options. Matrix credentials are checked by
// MatrixConfig.Validate, which only the serve command needs: either
// access_token with user_id, or username with password.
package config
