package main

import (
	"fmt"
	"io"
	"os"

	"github.com/docopt/docopt-go"

	"github.com/nginx-proxxy/hello-server/cmd/config"
	"github.com/nginx-proxxy/hello-server/cmd/logger"
	"github.com/nginx-proxxy/hello-server/cmd/metrics"
	"github.com/nginx-proxxy/hello-server/cmd/server"
)

const version = "dev"

const usage = `Hello server.

Usage:
  hello-server [--config=<toml_file>]
  hello-server -h | --help
  hello-server --version

Options:
  -h --help                 Show this screen.
  --version                 Show version.
  -c --config=<toml_file>   Load TOML config file (default: config.toml).

Environment Variables:
  HELLO_SERVER_CONFIG       Path to config.toml, used when --config is not given.

A missing config file means built-in defaults (0.0.0.0:5000).`

const configEnv = "HELLO_SERVER_CONFIG"

func main() {
	// Initialize a basic logger for early startup logging
	log := logger.NewFromConfigStruct("info", "json", "stdout")

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		log.LogError("argument parsing", err)
		os.Exit(1)
	}

	configPath, loadedViaEnv := resolveConfigPath(opts)

	cfg, usingDefaults, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.LogError("config loading", err, "source", "toml", "path", configPath)
		os.Exit(1)
	}
	if usingDefaults {
		log.Info("config file not found, using default configuration", "path", configPath)
	}
	log.LogConfig(configPath, loadedViaEnv, usingDefaults)

	// Reinitialize logger with configuration settings
	loggerConfig := &logger.Config{
		Level:  logger.LogLevel(cfg.Logger.Level),
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	}
	logger.Init(loggerConfig)
	log = logger.Default()

	srv := server.New(cfg, log, metrics.NewClient(&cfg.Metrics))

	log.LogStartup(cfg.GetListenAddr(), configPath, version)
	printStartup(os.Stdout, cfg)

	if err := srv.ListenAndServe(); err != nil {
		log.LogError("HTTP server", err, "addr", cfg.GetListenAddr())
		os.Exit(1)
	}
}

// printStartup writes the fixed startup line; it precedes the listener bind
func printStartup(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Starting Flask server on port %d...\n", cfg.Server.Port)
}

// resolveConfigPath picks --config, then the environment variable, then
// config.toml in the working directory.
func resolveConfigPath(opts docopt.Opts) (string, bool) {
	if path, _ := opts.String("--config"); path != "" {
		return path, false
	}
	if envPath := os.Getenv(configEnv); envPath != "" {
		return envPath, true
	}
	return "config.toml", false
}
