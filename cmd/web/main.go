// Command web runs the resident service: the daily scrape scheduler,
// the weekly recurrence digest, and the JSON API over the stored
// snapshots.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Nityess/GenerateWealth/internal/app"
	"github.com/Nityess/GenerateWealth/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "initialize application:", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "application error:", err)
		os.Exit(1)
	}
}
