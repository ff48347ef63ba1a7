package main

import (
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/muster/internal/presentation/tui"
	"github.com/aretw0/muster/pkg/adapters/remote"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Subscribe to a query and print every result",
	Long: `Subscribes to a query and prints its result every time it changes, until
interrupted. Against the local graph file, changes come from events relayed by
the Redis bridge when redis.addr is configured; with --remote, results stream
from a running "muster serve" instance over WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		raw, _ := flags.GetBool("raw")
		endpoint, _ := flags.GetString("remote")

		query, err := parseQuery(cmd, a.registry, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printer := tui.NewPrinter(os.Stdout, tui.WithRaw(raw))
		results := make(chan *domain.Definition, 16)
		deliver := func(result *domain.Definition) {
			select {
			case results <- result:
			case <-ctx.Done():
			}
		}

		if endpoint != "" {
			wsURL, err := socketURL(endpoint)
			if err != nil {
				return err
			}
			transport := remote.NewSocketTransport(wsURL, a.registry, remote.WithSocketLogger(a.logger))
			defer transport.Close()
			cancel := transport.Subscribe(query, deliver)
			defer cancel()
		} else {
			eng, err := a.engine(domain.Hooks{})
			if err != nil {
				return err
			}
			defer eng.Close()
			if bridge, client := a.bridge(eng); bridge != nil {
				defer client.Close()
				go func() {
					if err := bridge.Run(ctx); err != nil {
						a.logger.Error("Event bridge stopped", "error", err)
					}
				}()
			}
			unsubscribe := eng.Subscribe(query, deliver)
			defer unsubscribe()
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case result := <-results:
				if err := printer.Print(result); err != nil {
					return err
				}
			}
		}
	},
}

// socketURL maps the HTTP address of a server to its subscription endpoint.
// ws:// and wss:// URLs are used as given.
func socketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
		return endpoint, nil
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addQueryFlags(watchCmd)
}
