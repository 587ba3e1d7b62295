package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/vmc/internal/forwardcfg"
	"go.klb.dev/vmc/internal/hostaddr"
	"go.klb.dev/vmc/internal/protocol"
	"go.klb.dev/vmc/internal/transport"
	"go.klb.dev/vmc/internal/wire"
)

const heartbeatInterval = 30 * time.Second

func newAgentCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the guest reporter: heartbeat hostname/addresses/forwards to the server",
		Long: `Connects to the vmc server and, every 30 seconds, reports this guest's
hostname, IPv4/IPv6 addresses, and advertised port-forward rules read from
the well-known forward-config file.

Flags, environment variables, and config-file keys
  Flag            Env var          Config key
  ──────────────────────────────────────────────
  --server        VMC_SERVER       server
  --retry         VMC_RETRY        retry
  --forward-cfg   VMC_FORWARD_CFG  forward-cfg
  --log-level     VMC_LOG_LEVEL    log-level
  --log-format    VMC_LOG_FORMAT   log-format
  --config        (flag only)

Precedence: defaults → config file → VMC_* env vars → CLI flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runAgent(v) },
	}

	f := cmd.Flags()
	f.String("server", defaultAddr, "vmc server address")
	f.Duration("retry", 5*time.Second, "reconnect retry interval")
	f.String("forward-cfg", forwardcfg.DefaultPath(), "path to the port-forward config file")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runAgent(v *viper.Viper) error {
	setupLogging(v)

	addr := v.GetString("server")
	retry := v.GetDuration("retry")
	fwdPath := v.GetString("forward-cfg")

	onReconnect := func(conn *wire.Conn) error {
		if err := conn.WriteRequest(protocol.NegotiationRequest(protocol.Digest())); err != nil {
			return err
		}
		resp, err := conn.ReadResponse()
		if err != nil {
			return err
		}
		if resp.NegotiationResult == nil || !*resp.NegotiationResult {
			slog.Error("protocol mismatch with server, terminating", "addr", addr)
			os.Exit(1)
		}
		return nil
	}

	tr := transport.Dial(addr, retry, onReconnect)
	defer tr.Close()

	disc := hostaddr.New()

	for {
		mi, err := sampleMachineInfo(disc)
		if err != nil {
			slog.Warn("address sampling failed", "err", err)
			time.Sleep(heartbeatInterval)
			continue
		}

		forwards, err := forwardcfg.Read(fwdPath)
		if err != nil {
			slog.Warn("forward config read failed", "path", fwdPath, "err", err)
			forwards = nil
		}

		req := &protocol.Request{Kind: protocol.ReqNameService, NameService: &protocol.NSRequest{
			Kind: protocol.NSHeartbeat,
			Heartbeat: &protocol.Heartbeat{
				Machine:  mi,
				Forwards: forwards,
			},
		}}
		if err := tr.Send(req); err != nil {
			slog.Warn("heartbeat send failed", "err", err)
		} else {
			slog.Debug("heartbeat sent", "hostname", mi.Hostname, "ipv4", mi.IPv4Addr)
		}

		time.Sleep(heartbeatInterval)
	}
}

func sampleMachineInfo(disc *hostaddr.Discoverer) (protocol.MachineInfo, error) {
	hostname, err := disc.Hostname()
	if err != nil {
		return protocol.MachineInfo{}, fmt.Errorf("hostname: %w", err)
	}
	ipv4, err := disc.IPv4()
	if err != nil {
		return protocol.MachineInfo{}, fmt.Errorf("ipv4: %w", err)
	}
	mi := protocol.MachineInfo{Hostname: hostname, IPv4Addr: ipv4}

	if ipv6, err := disc.IPv6(); err == nil && ipv6 != "" {
		mi.IPv6Addr = &ipv6
	}
	return mi, nil
}
