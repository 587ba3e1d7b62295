package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go.klb.dev/vmc/internal/protocol"
)

func newQueryCmd() *cobra.Command {
	var serverAddr string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the machine registry",
	}
	cmd.PersistentFlags().StringVar(&serverAddr, "server", defaultAddr, "vmc server address")

	cmd.AddCommand(newQueryListCmd(&serverAddr))
	cmd.AddCommand(newQueryIPCmd(&serverAddr))

	return cmd
}

func newQueryListCmd(serverAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every machine currently known to the server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			conn, err := dialOneShot(*serverAddr)
			if err != nil {
				return err
			}
			defer conn.Close()

			req := &protocol.Request{Kind: protocol.ReqNameService, NameService: &protocol.NSRequest{
				Kind: protocol.NSGetMachineList,
			}}
			if err := conn.WriteRequest(req); err != nil {
				return fmt.Errorf("send query: %w", err)
			}
			resp, err := conn.ReadResponse()
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.NameService == nil {
				return fmt.Errorf("server returned no name-service payload")
			}
			printMachineList(resp.NameService.MachineList)
			return nil
		},
	}
}

func newQueryIPCmd(serverAddr *string) *cobra.Command {
	var v4Only, v6Only bool

	cmd := &cobra.Command{
		Use:   "ip <hostname>",
		Short: "Look up a machine's address by hostname",
		Long: `Looks up the registered address for a hostname. When the machine has
both an IPv4 and IPv6 address and neither --ipv4 nor --ipv6 is given, the
IPv6 address is printed in preference to IPv4.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			hostname := args[0]

			conn, err := dialOneShot(*serverAddr)
			if err != nil {
				return err
			}
			defer conn.Close()

			req := &protocol.Request{Kind: protocol.ReqNameService, NameService: &protocol.NSRequest{
				Kind:     protocol.NSQueryIP,
				Hostname: hostname,
			}}
			if err := conn.WriteRequest(req); err != nil {
				return fmt.Errorf("send query: %w", err)
			}
			resp, err := conn.ReadResponse()
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.NameService == nil || resp.NameService.IP == nil {
				return fmt.Errorf("no such machine: %s", hostname)
			}

			mi := resp.NameService.IP
			switch {
			case v4Only:
				if mi.IPv4Addr == "" {
					return fmt.Errorf("%s has no IPv4 address", hostname)
				}
				fmt.Println(mi.IPv4Addr)
			case v6Only:
				if mi.IPv6Addr == nil {
					return fmt.Errorf("%s has no IPv6 address", hostname)
				}
				fmt.Println(*mi.IPv6Addr)
			case mi.IPv6Addr != nil:
				fmt.Println(*mi.IPv6Addr)
			default:
				fmt.Println(mi.IPv4Addr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&v4Only, "ipv4", false, "print only the IPv4 address")
	cmd.Flags().BoolVar(&v6Only, "ipv6", false, "print only the IPv6 address")
	return cmd
}

func printMachineList(machines []protocol.MachineInfo) {
	if len(machines) == 0 {
		fmt.Println("No machines registered.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "HOSTNAME\tIPV4\tIPV6\n")
	fmt.Fprintf(w, "--------\t----\t----\n")
	for _, m := range machines {
		ipv6 := "-"
		if m.IPv6Addr != nil {
			ipv6 = *m.IPv6Addr
		}
		ipv4 := m.IPv4Addr
		if ipv4 == "" {
			ipv4 = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Hostname, ipv4, ipv6)
	}
	_ = w.Flush()
}
