package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/arg-foo/zaza-sub000/internal/di"
	"github.com/arg-foo/zaza-sub000/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path, empty for defaults")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "quant server: %v\n", err)
		os.Exit(1)
	}
}

// run blocks until SIGINT or SIGTERM.
func run(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return app.Run()
}
