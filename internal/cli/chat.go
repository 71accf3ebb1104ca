package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/ostruka/internal/client"
	"github.com/tOgg1/ostruka/internal/commands"
	"github.com/tOgg1/ostruka/internal/logging"
	"github.com/tOgg1/ostruka/internal/notify"
	"github.com/tOgg1/ostruka/internal/session"
	"github.com/tOgg1/ostruka/internal/tui"
)

var errNoTerminal = errors.New("ostruka needs an interactive terminal")

func runChat(cmd *cobra.Command, opts *rootOptions, chat *chatOptions) error {
	cfg, loader, err := opts.load(map[string]string{
		"user":           chat.user,
		"server_address": chat.server,
		"tui.theme":      chat.theme,
	})
	if err != nil {
		return err
	}
	if err := cfg.ValidateClient(); err != nil {
		return err
	}
	if !hasTTY() {
		return errNoTerminal
	}

	closer, err := logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		File:         cfg.Logging.File,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := logging.Component("ostruka")
	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug().Str("config_file", used).Msg("loaded config file")
	}

	password := cfg.Password
	if password == "" {
		password, err = readPassword(cmd.ErrOrStderr(), "Password: ")
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, alias, err := client.LogInAny(ctx, client.Options{
		Addr:        cfg.ServerAddress,
		Password:    password,
		DialTimeout: cfg.Transport.DialTimeout,
		OutboxSize:  cfg.Transport.OutboxSize,
		SendRate:    cfg.Transport.SendRate,
		Logger:      logging.Component("client"),
	}, cfg.Aliases()...)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	defer c.Close()

	store := session.NewStore(cfg.HomePage, alias)
	dispatcher := commands.NewDispatcher(alias, store, c.Tx(), logging.Component("commands"))
	input := session.NewInputMachine(store, dispatcher)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.TUI.Notify {
		notifier = notify.NewDesktop(logging.Component("notify"))
	}
	loop := session.NewNetworkLoop(store, c, notifier, logging.Component("session"))

	logger.Info().Str("user", alias).Str("server", cfg.ServerAddress).Msg("session started")
	err = tui.Run(ctx, tui.Config{
		Store:        store,
		Input:        input,
		User:         alias,
		Server:       cfg.ServerAddress,
		Theme:        cfg.TUI.Theme,
		TickInterval: cfg.TUI.TickInterval,
		Network:      loop.Run,
	})
	logger.Info().Err(err).Msg("session ended")
	return err
}
