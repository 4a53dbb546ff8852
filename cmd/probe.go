package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/okian/tarelay/internal/adapters/conn"
	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/config"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultProbeTimeout = 10 * time.Second

var (
	errConnectRejected = errors.New("connect rejected")
	errNoConnect       = errors.New("stream ended before the connect response")
)

func probeCmd() *cobra.Command {
	var (
		uri     string
		name    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect once, wait for the connect response and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
				return err
			}
			if uri == "" {
				cfg, err := config.Load(cmd.Context())
				if err != nil {
					return err
				}
				uri = cfg.WSURI
			}
			return probe(cmd.Context(), cmd.OutOrStdout(), uri, name, timeout)
		},
	}
	cmd.Flags().StringVarP(&uri, "uri", "u", "", "origin websocket uri (defaults to the configured ws_uri)")
	cmd.Flags().StringVarP(&name, "name", "n", "TA-Relay-Probe", "display name of the probe connection")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", defaultProbeTimeout, "how long to wait for the connect response")
	return cmd
}

// probe dials uri and reports the state carried by the connect response.
func probe(ctx context.Context, w io.Writer, uri, name string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := conn.Dial(ctx, uri, name)
	if err != nil {
		return err
	}
	defer c.Close()

	for p, err := range c.Packets(ctx) {
		if err != nil {
			if errors.Is(err, conn.ErrDecode) {
				continue
			}
			return err
		}
		resp, ok := p.Payload.(*wire.Response)
		if !ok {
			continue
		}
		details, ok := resp.Details.(*wire.ConnectResponse)
		if !ok {
			continue
		}
		if resp.Type != wire.ResponseSuccess {
			return fmt.Errorf("%w: %s", errConnectRejected, details.Message)
		}
		printSummary(w, uri, details)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for connect response: %w", err)
	}
	return errNoConnect
}

func printSummary(w io.Writer, uri string, r *wire.ConnectResponse) {
	st := repository.NewState()
	if r.State != nil {
		st.Replace(r.State)
	}
	counts := st.Counts()

	ok := color.New(color.FgGreen, color.Bold)
	label := color.New(color.FgCyan)

	_, _ = ok.Fprintf(w, "✓ connected to %s\n", uri)
	if r.State != nil && r.State.ServerSettings != nil {
		_, _ = label.Fprint(w, "  Server:            ")
		_, _ = fmt.Fprintln(w, r.State.ServerSettings.ServerName)
	}
	rows := []struct {
		name  string
		value any
	}{
		{"Server version:    ", r.ServerVersion},
		{"Message:           ", r.Message},
		{"Coordinators:      ", counts.Coordinators},
		{"Players:           ", counts.Players},
		{"Server connections:", counts.ServerConnections},
		{"Matches:           ", counts.Matches},
		{"Known hosts:       ", counts.KnownHosts},
	}
	for _, row := range rows {
		_, _ = label.Fprintf(w, "  %s ", row.name)
		_, _ = fmt.Fprintln(w, row.value)
	}
}
