package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cortexai/opsagent/internal/config"
	"github.com/cortexai/opsagent/internal/models"
	"github.com/cortexai/opsagent/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file (default $OPSAGENT_CONFIG)")
	query := flag.String("query", "", "answer one query and exit instead of serving HTTP")
	agentID := flag.String("agent", "", "with -query, skip routing and use this agent")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *query != "" {
		os.Exit(ask(ctx, cfg, *query, *agentID))
	}

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("server setup failed")
	}
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func ask(ctx context.Context, cfg *config.Config, query, agentID string) int {
	b, err := server.NewBackends(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		return 1
	}
	defer b.Close()

	resp := b.Agents.Ask(ctx, models.InvokeRequest{Query: query, Agent: agentID})
	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", resp.Agent, resp.Error)
		return 1
	}
	fmt.Printf("[%s] %s\n", resp.Agent, resp.Response)
	return 0
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
