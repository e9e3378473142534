package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/cyberinferno/wordduel/broadcast"
	"github.com/cyberinferno/wordduel/command"
	"github.com/cyberinferno/wordduel/config"
	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/ops"
	"github.com/cyberinferno/wordduel/registry"
	"github.com/cyberinferno/wordduel/server"
	"github.com/cyberinferno/wordduel/spectate"
	"github.com/cyberinferno/wordduel/wire"
)

func main() {
	cfg := config.Load()

	cmd := &cli.Command{
		Name:  "wordduel-server",
		Usage: "host word-guessing duels over tcp or a unix socket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Value: cfg.Transport, Usage: "socket transport: tcp or unix"},
			&cli.StringFlag{Name: "endpoint", Value: cfg.Endpoint, Usage: "port, host:port, or unix socket path"},
			&cli.StringFlag{Name: "password", Value: cfg.Password, Usage: "shared password players must present"},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel, Usage: "log level: trace, debug, info, warn, error"},
			&cli.StringFlag{Name: "ops-addr", Value: cfg.OpsAddr, Usage: "ops listener address, empty disables it"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.Transport = cmd.String("transport")
			cfg.Endpoint = cmd.String("endpoint")
			cfg.Password = cmd.String("password")
			cfg.LogLevel = cmd.String("log-level")
			cfg.OpsAddr = cmd.String("ops-addr")

			return run(ctx, cfg)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Password == "" {
		return errors.New("a server password is required (--password or WORDDUEL_PASSWORD)")
	}

	log := logger.New("wordduel-server", cfg.LogLevel)

	reg := registry.New(cfg.Password)
	bus := broadcast.New(0)

	disp := broadcast.NewDispatcher(bus, log)
	if err := disp.Start(); err != nil {
		return err
	}

	post := func(recipient uint64, m wire.Message) error {
		return disp.Post(broadcast.Envelope{RecipientID: recipient, Message: m})
	}

	srv := &server.Server{
		Logger:      log,
		Name:        "wordduel",
		Transport:   cfg.Transport,
		Endpoint:    cfg.Endpoint,
		Registry:    reg,
		Bus:         bus,
		Interp:      command.NewInterpreter(reg, post, log),
		Spectators:  spectate.NewCache(reg, cfg.RedisAddr, cfg.SnapshotTTL),
		ReadTimeout: cfg.ReadTimeout,
		LoopDelay:   cfg.LoopDelay,
	}
	if err := srv.Start(); err != nil {
		disp.Stop()
		return err
	}

	var opsSrv *ops.Server
	if cfg.OpsAddr != "" {
		opsSrv = &ops.Server{Logger: log, Addr: cfg.OpsAddr, Games: srv.Spectators}
		if err := opsSrv.Start(); err != nil {
			srv.Stop()
			disp.Stop()
			return err
		}
	}

	<-ctx.Done()
	log.Info("shutting down")

	srv.Stop()
	disp.Stop()

	if opsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		opsSrv.Shutdown(shutdownCtx)
	}

	return nil
}
