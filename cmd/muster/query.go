package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/muster/internal/presentation/tui"
	"github.com/aretw0/muster/pkg/adapters/remote"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/aretw0/muster/pkg/wire"
	"github.com/spf13/cobra"
)

// errFailed reports that the printed result was an error node.
var errFailed = errors.New("query failed")

var queryCmd = &cobra.Command{
	Use:   "query [path]",
	Short: "Resolve a path or a serialized query once",
	Long: `Resolves a query against the local graph file, or against a running
"muster serve" instance when --remote is given, and prints the result.

  muster query users/alice
  muster query --json '{"$type":"ref","path":[{"$type":"value","value":"users"}]}'
  muster query --remote http://localhost:8080 users/alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		raw, _ := flags.GetBool("raw")
		timeout, _ := flags.GetDuration("timeout")
		endpoint, _ := flags.GetString("remote")

		query, err := parseQuery(cmd, a.registry, args)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		var result *domain.Definition
		if endpoint != "" {
			result, err = remote.NewHTTPTransport(endpoint, a.registry, remote.WithHTTPLogger(a.logger)).Query(ctx, query)
		} else {
			eng, eerr := a.engine(domain.Hooks{})
			if eerr != nil {
				return eerr
			}
			defer eng.Close()
			result, err = eng.Resolve(ctx, query)
		}
		if result == nil {
			return fmt.Errorf("no result: %w", err)
		}

		printer := tui.NewPrinter(os.Stdout, tui.WithRaw(raw))
		if perr := printer.Print(result); perr != nil {
			return perr
		}
		if err != nil {
			return errFailed
		}
		return nil
	},
}

// parseQuery builds the query of query and watch: the --json flag, or a ref to
// the path given as arguments.
func parseQuery(cmd *cobra.Command, reg *registry.Registry, args []string) (*domain.Definition, error) {
	raw, _ := cmd.Flags().GetString("json")
	if raw != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--json and a path argument are mutually exclusive")
		}
		query, err := wire.Deserialize(reg, []byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid query: %w", err)
		}
		return query, nil
	}
	return nodes.Ref(splitPath(args)...), nil
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("json", "", "Serialized query node")
	cmd.Flags().String("remote", "", "URL of a running muster server")
	cmd.Flags().Bool("raw", false, "Print serialized result nodes")
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addQueryFlags(queryCmd)
	queryCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for a settled result")
}
