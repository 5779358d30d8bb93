package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/charlie/internal/client"
	"github.com/lox/charlie/internal/config"
	"github.com/lox/charlie/internal/console"
	"github.com/lox/charlie/internal/session"
)

var version = "dev"

var CLI struct {
	Config   string           `short:"c" long:"config" default:"charlie.hcl" help:"Path to HCL configuration file"`
	EnvFile  []string         `long:"env-file" help:"Dotenv files to load before reading the environment" default:".env"`
	Server   string           `short:"s" long:"server" help:"House URL to connect to (overrides config)"`
	Player   string           `short:"p" long:"player" help:"Player name (overrides config)"`
	Address  string           `short:"a" long:"address" help:"Local address announced to the house (overrides config)"`
	LogLevel string           `short:"l" long:"log-level" help:"Log level (overrides config)"`
	LogFile  string           `long:"log-file" help:"Log file path (overrides config)"`
	NoColor  bool             `long:"no-color" help:"Disable colored output"`
	Version  kong.VersionFlag `short:"v" help:"Print version and exit"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("charlie"),
		kong.Description("Blackjack client for a networked dealer"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := config.LoadDotEnv(CLI.EnvFile...); err != nil {
		fmt.Printf("Error loading environment: %v\n", err)
		ctx.Exit(1)
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	// Apply command line overrides
	if CLI.Server != "" {
		cfg.Server.URL = CLI.Server
	}
	if CLI.Player != "" {
		cfg.Player.Name = CLI.Player
	}
	if CLI.Address != "" {
		cfg.Player.Address = CLI.Address
	}
	if CLI.LogLevel != "" {
		cfg.UI.LogLevel = CLI.LogLevel
	}
	if CLI.LogFile != "" {
		cfg.UI.LogFile = CLI.LogFile
	}
	if CLI.NoColor {
		cfg.UI.Color = false
	}

	// Get player name if not set
	if cfg.Player.Name == "" {
		fmt.Print("Enter your player name: ")
		var input string
		_, _ = fmt.Scanln(&input)
		cfg.Player.Name = strings.TrimSpace(input)
		if cfg.Player.Name == "" {
			fmt.Println("Player name is required")
			ctx.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		fmt.Printf("Failed to open log file: %v\n", err)
		ctx.Exit(1)
	}
	defer func() { _ = logFile.Close() }()

	logger := log.NewWithOptions(logFile, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           cfg.Level(),
	})

	logger.Info("Starting charlie",
		"version", version,
		"server", cfg.Server.URL,
		"player", cfg.Player.Name,
		"config", CLI.Config)

	if err := run(cfg, logger); err != nil {
		logger.Error("Client stopped", "error", err)
		fmt.Printf("Error: %v\n", err)
		ctx.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	houseURL, err := client.WebsocketURL(cfg.Server.URL, "/house")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := quartz.NewReal()
	ui := console.NewPresenter(os.Stdout, cfg.UI.Color)
	dialer := client.NewDialer(cfg.Transport(), logger, clock)
	handler := session.New(cfg.Session(), dialer, ui, logger, clock)
	defer func() { _ = handler.Close() }()
	handler.SetLocalAddress(cfg.Player.Address)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Run(gctx)
	})

	loginCtx, cancel := context.WithTimeout(gctx, cfg.Session().ConnectTimeout)
	house, err := dialer.Login(loginCtx, houseURL, cfg.Player.Name, handler.LocalAddress(), handler.HouseSink())
	cancel()
	if err != nil {
		stop()
		_ = g.Wait()
		return fmt.Errorf("failed to reach house: %w", err)
	}
	defer func() { _ = house.Close() }()

	ui.Printf("=== Charlie ===")
	ui.Printf("House: %s  Player: %s", cfg.Server.URL, cfg.Player.Name)
	ui.Printf("%s", console.Help)

	g.Go(func() error {
		defer stop()
		err := console.Loop(gctx, os.Stdin, handler, ui, cfg.Player.DefaultBet, logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("Shutting down", "stats", fmt.Sprintf("%+v", handler.Stats()))
	return err
}
