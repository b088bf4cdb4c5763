// Command badnews is the financial bad-news radar CLI: it fetches trending
// headlines for a keyword, screens them for negative bank/finance events and
// serves the results over a dashboard and an RSS feed.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/finwatch/bad-news-radar/internal/logger"
)

const usage = `usage: badnews <command> [flags]

commands:
  fetch        run one fetch-filter-classify cycle and print the summary
  rss          render the negative-news RSS feed
  serve        start the dashboard and API server
  scheduler    run cycles on a fixed interval until interrupted
  clear-today  delete items fetched on the current local day
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	// Missing .env is fine; the environment may be set by the deployment.
	_ = godotenv.Load()

	log := logger.New(command)

	var err error
	switch command {
	case "fetch":
		err = runFetch(args, log)
	case "rss":
		err = runRSS(args, log)
	case "serve":
		err = runServe(args, log)
	case "scheduler":
		err = runScheduler(args, log)
	case "clear-today":
		err = runClearToday(args, log)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error("command failed", slog.String("command", command), slog.Any("err", err))
		os.Exit(1)
	}
}
