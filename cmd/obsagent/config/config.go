// Package configcmder provides the config command for managing persistent
// obsagent configuration stored in the .obsagent/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent obsagent configuration.

Configuration is stored as config.toml in the .obsagent/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.vault_path,
  vector_store.provider, vector_store.target, vector_store.snapshot_path,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  completion.provider, completion.target, completion.model,
  pipeline.min_word_count, pipeline.top_k,
  resilience.max_retries, resilience.backoff_ms,
  audit.log_path, audit.max_operations,
  api.listen, eventstream.topic

Use subcommands to get, set, or list configuration values:
  obsagent config set <key> <value>    Set a configuration value
  obsagent config get <key>            Get a configuration value
  obsagent config list                 List all configuration values

Examples:
  obsagent config set embedding.provider openai
  obsagent config set embedding.model text-embedding-3-small
  obsagent config get completion.model
  obsagent config list`

const configShortDesc string = "Manage persistent obsagent configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
