// ABOUTME: Starter configuration written by the init command
// ABOUTME: Secrets are referenced through environment variables, never inlined

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Template is the starter operator.yaml.
const Template = `# coven-operator configuration

# Directory the agent CLIs run in. Defaults to the directory serve starts in.
# working_dir: /home/me/projects

default_provider: claude
message_limit: 4096
stop_grace: 500ms
tick_interval: 1s

providers:
  claude:
    models: [opus, sonnet, haiku]
  codex:
    models: [gpt-5.3-codex]
  gemini:
    models: [gemini-2.5-pro, gemini-2.5-flash]
    aggregate: concat

matrix:
  homeserver: "https://matrix.org"
  user_id: "${MATRIX_USER_ID}"
  access_token: "${MATRIX_ACCESS_TOKEN}"
  # username: "${MATRIX_USERNAME}"
  # password: "${MATRIX_PASSWORD}"
  # recovery_key: "${MATRIX_RECOVERY_KEY}"
  allowed_users: []
  allowed_rooms: []
  command_prefix: "!"
  typing_indicator: true

ledger:
  enabled: true
  retention: 720h
  prune_schedule: "@daily"

metrics:
  enabled: false
  addr: "127.0.0.1:9464"
  path: /metrics

logging:
  level: info
  format: text
`

// WriteTemplate writes Template to path. An existing file is kept unless
// force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Template), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
