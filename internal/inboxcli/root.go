// Package inboxcli implements the opsdesk command line interface.
package inboxcli

import (
	"github.com/spf13/cobra"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/config"
	"github.com/opsdeskhq/opsdesk/internal/logging"
	"github.com/opsdeskhq/opsdesk/internal/session"
	"github.com/opsdeskhq/opsdesk/internal/snapshot"
)

// Execute runs the CLI.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "opsdesk",
		Short:         "Conversation inbox for the operations dashboard",
		Long:          "opsdesk reads and answers customer conversations from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().String("config", "", "Config file path")
	cmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newListCmd(),
		newShowCmd(),
		newSendCmd(),
		newReplyCmd(),
		newResolveCmd(),
		newAssignCmd(),
		newStatsCmd(),
	)

	return cmd
}

// runtime bundles everything a command needs: loaded config, the API
// client with the saved session applied, and the local snapshot cache.
type runtime struct {
	cfg       *config.Config
	client    *api.Client
	sessions  *session.Store
	snapshots *snapshot.Store
	sess      *session.Session
}

// loadRuntime loads config and wires the client. It does not require a
// session; commands that need one call ensureRuntime instead.
func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load config: %v", err)
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	sessions := session.NewStore(cfg.SessionPath())
	sess, err := sessions.Load()
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load session: %v", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	client.SetToken(sess.Token)
	// A rejected token is stale; drop it so the next run prompts for login.
	client.SetUnauthorizedHook(func() {
		_ = sessions.Clear()
	})

	rt := &runtime{cfg: cfg, client: client, sessions: sessions, sess: sess}

	// The snapshot cache is best-effort; commands degrade to API-only when
	// it cannot be opened.
	if err := cfg.EnsureDirectories(); err == nil {
		if store, err := snapshot.Open(cfg.SnapshotPath(), cfg.Snapshot.BusyTimeoutMs); err == nil {
			rt.snapshots = store
		} else {
			logging.Warn().Err(err).Msg("snapshot cache unavailable")
		}
	}

	return rt, nil
}

// ensureRuntime loads the runtime and requires a saved session.
func ensureRuntime(cmd *cobra.Command) (*runtime, error) {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return nil, err
	}
	if rt.sess.IsEmpty() {
		return nil, Exitf(ExitCodeAuth, "not logged in; run 'opsdesk login' first")
	}
	return rt, nil
}

func (rt *runtime) close() {
	if rt.snapshots != nil {
		_ = rt.snapshots.Close()
	}
}
