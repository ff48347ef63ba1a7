package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/muster"
	"github.com/aretw0/muster/internal/config"
	"github.com/aretw0/muster/internal/logging"
	redisAdapter "github.com/aretw0/muster/pkg/adapters/redis"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app carries what every command derives from the configuration file and the
// persistent flags.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *registry.Registry
}

func setup(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path, !flags.Changed("config"))
	if err != nil {
		return nil, err
	}

	if flags.Changed("graph") {
		cfg.Graph, _ = flags.GetString("graph")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry()
	if err := nodes.Register(reg); err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logging.New(level, cfg.Log.Format),
		registry: reg,
	}, nil
}

// engine loads the configured graph file into a new engine.
func (a *app) engine(hooks domain.Hooks) (*muster.Engine, error) {
	root, err := config.LoadGraph(a.cfg.Graph, a.registry)
	if err != nil {
		return nil, err
	}
	eng, err := muster.New(root,
		muster.WithRegistry(a.registry),
		muster.WithLogger(a.logger),
		muster.WithHooks(hooks),
		muster.WithDebug(a.cfg.Debug),
		muster.WithMaxDepth(a.cfg.MaxDepth),
		muster.WithName(a.cfg.Graph),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return eng, nil
}

// bridge returns the configured Redis event bridge and its client, or nil when
// none is configured.
func (a *app) bridge(eng *muster.Engine) (*redisAdapter.Bridge, *redis.Client) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	return redisAdapter.NewBridge(client, eng,
		redisAdapter.WithChannel(a.cfg.Redis.Channel),
		redisAdapter.WithLogger(a.logger),
	), client
}

// splitPath turns "users/alice" style arguments into path keys.
func splitPath(args []string) []any {
	var out []any
	for _, arg := range args {
		for _, key := range strings.FieldsFunc(arg, func(r rune) bool { return r == '/' }) {
			out = append(out, key)
		}
	}
	return out
}
