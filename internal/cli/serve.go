package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/ostruka/internal/client"
	"github.com/tOgg1/ostruka/internal/db"
	"github.com/tOgg1/ostruka/internal/logging"
	"github.com/tOgg1/ostruka/internal/relay"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen, database string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a development relay",
		Long:  "Run a relay that routes direct and group messages between ostruka clients. Logins are checked against the account database unless it is \"none\".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(map[string]string{
				"relay.listen":   listen,
				"relay.database": database,
			})
			if err != nil {
				return err
			}

			if _, err := logging.Init(logging.Config{
				Level:        cfg.Logging.Level,
				Format:       cfg.Logging.Format,
				Output:       cmd.ErrOrStderr(),
				EnableCaller: cfg.Logging.EnableCaller,
			}); err != nil {
				return err
			}
			logger := logging.Component("relay")

			auth := relay.AllowAll()
			if path := accountDatabase(cfg.Relay.Database); path != "" {
				accounts, err := db.Open(path)
				if err != nil {
					return err
				}
				defer accounts.Close()
				auth = relay.Accounts(db.NewAccountRepository(accounts))
				logger.Info().Str("database", path).Msg("checking logins against accounts")
			} else {
				logger.Warn().Msg("no account database, accepting every login")
			}

			network, address := client.Endpoint(cfg.Relay.Listen)
			if network == "unix" {
				if err := os.Remove(address); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("remove stale socket: %w", err)
				}
			}
			ln, err := net.Listen(network, address)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Relay.Listen, err)
			}

			server := relay.New(auth, relay.Options{
				MsgsPerSec: cfg.Relay.MsgsPerSec,
				Logger:     logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				_ = server.Close()
			}()

			logger.Info().Str("listen", ln.Addr().String()).Msg("relay listening")
			if err := server.Serve(ln); err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			logger.Info().Msg("relay stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (host:port, unix://path or socket path)")
	cmd.Flags().StringVar(&database, "database", "", "account database path, or \"none\" to accept every login")
	return cmd
}

// accountDatabase returns the database path, or "" when logins are not
// checked.
func accountDatabase(path string) string {
	path = strings.TrimSpace(path)
	if strings.EqualFold(path, "none") {
		return ""
	}
	return path
}
