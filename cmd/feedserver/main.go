package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load() // Load .env if present

	app := &cli.App{
		Name:  "feedserver",
		Usage: "Keep live block and transaction feeds in sync with a Zcash node and indexer",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the feed server",
				Flags:  runFlags(),
				Action: run,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
