package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/vmc/internal/mountlist"
	"go.klb.dev/vmc/internal/protocol"
)

func newGuestCommands() []*cobra.Command {
	return []*cobra.Command{
		newClipSetCmd(),
		newClipGetCmd(),
		newExecCmd(),
		newOpenCmd(),
		newEnvCmd(),
		newNotifyCmd(),
		newToWinPathCmd(),
	}
}

func guestServerFlag(cmd *cobra.Command) *string {
	addr := cmd.Flags().String("server", defaultAddr, "vmc server address")
	return addr
}

func newClipSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cb-set",
		Short: "Read stdin and set the host clipboard (like pbcopy)",
		Args:  cobra.NoArgs,
	}
	addr := guestServerFlag(cmd)
	cmd.RunE = func(_ *cobra.Command, _ []string) error {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}

		conn, err := dialOneShot(*addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		req := &protocol.Request{Kind: protocol.ReqClipBoard, ClipBoard: &protocol.CBRequest{
			Kind:  protocol.CBSetClipboard,
			Value: string(data),
		}}
		if err := conn.WriteRequest(req); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		slog.Debug("clipboard set", "bytes", len(data))
		return nil
	}
	return cmd
}

func newClipGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cb-get",
		Short: "Print the host clipboard to stdout (like pbpaste)",
		Args:  cobra.NoArgs,
	}
	addr := guestServerFlag(cmd)
	cmd.RunE = func(_ *cobra.Command, _ []string) error {
		conn, err := dialOneShot(*addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		req := &protocol.Request{Kind: protocol.ReqClipBoard, ClipBoard: &protocol.CBRequest{
			Kind: protocol.CBGetClipboard,
		}}
		if err := conn.WriteRequest(req); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		resp, err := conn.ReadResponse()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.ClipBoard == nil {
			return fmt.Errorf("server returned no clipboard payload")
		}
		fmt.Print(resp.ClipBoard.Value)
		return nil
	}
	return cmd
}

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec -- <argv...>",
		Short: "Run a command on the host",
		Args:  cobra.MinimumNArgs(1),
	}
	addr := guestServerFlag(cmd)
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		conn, err := dialOneShot(*addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		req := &protocol.Request{Kind: protocol.ReqExecute, Execute: &protocol.ExecRequest{
			Kind: protocol.ExecRun,
			Argv: args,
		}}
		if err := conn.WriteRequest(req); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		return nil
	}
	return cmd
}

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Open a path or URL on the host with its default handler",
		Args:  cobra.ExactArgs(1),
	}
	addr := guestServerFlag(cmd)
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		conn, err := dialOneShot(*addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		req := &protocol.Request{Kind: protocol.ReqExecute, Execute: &protocol.ExecRequest{
			Kind: protocol.ExecOpen,
			Path: args[0],
		}}
		if err := conn.WriteRequest(req); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		return nil
	}
	return cmd
}

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env <key>",
		Short: "Print a host environment variable",
		Args:  cobra.ExactArgs(1),
	}
	addr := guestServerFlag(cmd)
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		conn, err := dialOneShot(*addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		req := &protocol.Request{Kind: protocol.ReqExecute, Execute: &protocol.ExecRequest{
			Kind: protocol.ExecGetEnvVar,
			Key:  args[0],
		}}
		if err := conn.WriteRequest(req); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		resp, err := conn.ReadResponse()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.Execute == nil || resp.Execute.Value == nil {
			return fmt.Errorf("%s is not set on the host", args[0])
		}
		fmt.Println(*resp.Execute.Value)
		return nil
	}
	return cmd
}

func newNotifyCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "notify <body>",
		Short: "Show a desktop notification on the host",
		Args:  cobra.ExactArgs(1),
	}
	addr := guestServerFlag(cmd)
	cmd.Flags().StringVar(&title, "title", "", "notification title (default: "+protocol.DefaultNotificationTitle+")")
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		conn, err := dialOneShot(*addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		ntf := &protocol.NTFRequest{Body: args[0]}
		if title != "" {
			ntf.Title = &title
		}
		req := &protocol.Request{Kind: protocol.ReqNotification, Notification: ntf}
		if err := conn.WriteRequest(req); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		return nil
	}
	return cmd
}

func newToWinPathCmd() *cobra.Command {
	var mountListPath string

	cmd := &cobra.Command{
		Use:   "to-win-path <guest-path>",
		Short: "Translate a guest path to its host-visible path using the guest's mount list",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mounts, err := mountlist.Read(mountListPath)
			if err != nil {
				return fmt.Errorf("read mount list: %w", err)
			}
			fmt.Println(mountlist.TranslateToHostPath(mounts, args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&mountListPath, "mount-list", mountlist.DefaultPath(), "path to the mount list file")
	return cmd
}
