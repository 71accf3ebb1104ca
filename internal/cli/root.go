// Package cli wires the ostruka commands: the chat client, the development
// relay and their configuration helpers.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tOgg1/ostruka/internal/config"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

// chatOptions override the config for the client run.
type chatOptions struct {
	user   string
	server string
	theme  string
}

// Execute runs the ostruka command line.
func Execute(version string) error {
	return newRootCmd(version).ExecuteContext(context.Background())
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	chat := &chatOptions{}
	cmd := &cobra.Command{
		Use:           "ostruka",
		Short:         "Terminal chat client",
		Long:          "ostruka is a terminal chat client that multiplexes direct and group conversations over one relay connection.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts, chat)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.config/ostruka/config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override logging format (json, console)")

	cmd.Flags().StringVarP(&chat.user, "user", "u", "", "login alias")
	cmd.Flags().StringVarP(&chat.server, "server", "s", "", "relay address (host:port, unix://path or socket path)")
	cmd.Flags().StringVar(&chat.theme, "theme", "", "theme: default|high-contrast")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAccountCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// load reads the configuration with flag overrides applied. overrides maps
// config keys to flag values; empty values are skipped.
func (o *rootOptions) load(overrides map[string]string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if o.configFile != "" {
		loader.SetConfigFile(o.configFile)
	}
	if o.logLevel != "" {
		loader.Set("logging.level", o.logLevel)
	}
	if o.logFormat != "" {
		loader.Set("logging.format", o.logFormat)
	}
	for key, value := range overrides {
		if value != "" {
			loader.Set(key, value)
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
