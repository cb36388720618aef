package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/eringen/pubstatic"
)

// version is set at build time via ldflags.
var version = "dev"

type cli struct {
	Config  string `short:"c" env:"PUBSTATIC_CONFIG" help:"Configuration file path (optional; environment variables override its values)" type:"path"`
	EnvFile string `help:"Environment file loaded before the configuration" default:".env"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Serve struct {
		Static string `help:"Directory served under /public" default:"public"`
	} `cmd:"" default:"1" help:"Serve the blog with incremental regeneration"`

	Build struct {
		Output string `short:"o" help:"Output directory for the exported site" default:"./dist"`
	} `cmd:"" help:"Render every page from the content store into a static directory"`

	Seed struct {
		File string `arg:"" help:"YAML file of posts to insert" type:"existingfile"`
	} `cmd:"" help:"Insert posts into the content store for local development"`

	Version struct{} `cmd:"" help:"Print the pubstatic version"`
}

var CLI cli

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("pubstatic"),
		kong.Description("Incrementally regenerated static blog pages from a hosted content database."),
	)

	if kctx.Command() == "version" {
		fmt.Printf("pubstatic %s\n", version)
		return
	}

	if err := pubstatic.LoadEnvFile(CLI.EnvFile); err != nil {
		slog.Error("Failed to load environment file", "error", err)
		os.Exit(1)
	}
	cfg, err := pubstatic.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if CLI.Verbose {
		cfg.LogLevel = "debug"
	}
	logger := pubstatic.NewLogger(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "build":
		err = runBuild(ctx, cfg, logger, CLI.Build.Output)
	case "seed <file>":
		err = runSeed(ctx, cfg, logger, CLI.Seed.File)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		logger.Error("Command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg pubstatic.SiteConfig, logger *slog.Logger) error {
	app := pubstatic.New(cfg,
		pubstatic.WithLogger(logger),
		pubstatic.WithStaticDir(CLI.Serve.Static),
	)
	defer app.Close()
	return app.Start(ctx)
}

func runBuild(ctx context.Context, cfg pubstatic.SiteConfig, logger *slog.Logger, out string) error {
	app := pubstatic.New(cfg, pubstatic.WithLogger(logger))
	defer app.Close()
	if err := app.Init(ctx); err != nil {
		return err
	}
	n, err := app.Publisher.Export(ctx, out)
	if err != nil {
		return err
	}
	logger.Info("Build complete", "output", out, "files", n)
	return nil
}

func runSeed(ctx context.Context, cfg pubstatic.SiteConfig, logger *slog.Logger, file string) error {
	posts, err := pubstatic.LoadSeedFile(file)
	if err != nil {
		return err
	}
	store, err := pubstatic.NewStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := pubstatic.Seed(ctx, store, posts)
	if err != nil {
		return err
	}
	logger.Info("Seeded posts", "count", n, "table", cfg.Database.Table)
	return nil
}
