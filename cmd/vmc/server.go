package main

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/vmc/internal/actions"
	"go.klb.dev/vmc/internal/dispatcher"
	"go.klb.dev/vmc/internal/registry"
	"go.klb.dev/vmc/internal/relay"
)

func newServerCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the vmc coordination server",
		Long: `Starts the vmc server: guest sessions heartbeat their hostname and
addresses into the machine registry, query and guest command clients
read/trigger side-effects through it, and advertised port-forward rules
are relayed from host ports into the guest.

Flags, environment variables, and config-file keys
  Flag           Env var        Config key
  ────────────────────────────────────────
  --addr         VMC_ADDR       addr
  --log-level    VMC_LOG_LEVEL  log-level    (debug|info|warn|error)
  --log-format   VMC_LOG_FORMAT log-format   (auto|text|json)
  --config       (flag only)

Config file search order (first found wins; --config replaces the search)
  /etc/vmc/vmc.toml
  $HOME/.config/vmc/vmc.toml

Precedence: defaults → config file → VMC_* env vars → CLI flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServer(v) },
	}

	f := cmd.Flags()
	f.String("addr", "0.0.0.0:12345", "TCP listen address")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServer(v *viper.Viper) error {
	setupLogging(v)
	addr := v.GetString("addr")

	reg := registry.New()
	ctrl := relay.NewController()
	go ctrl.Run()

	adapters := dispatcher.Adapters{
		Clipboard: actions.NewClipboard(),
		Exec:      actions.OSExec{},
		Notify:    actions.OSNotify{},
		Env:       actions.OSEnv{},
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("vmc server listening", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		sess := &dispatcher.Session{Registry: reg, Controller: ctrl, Adapters: adapters}
		go sess.Serve(conn)
	}
}
