package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"property-listings-puller/internal"
	"property-listings-puller/internal/configs"
	"strings"
	"time"
)

func main() {
	fs := flag.NewFlagSet("listings-puller", flag.ExitOnError)
	envPath := fs.String("env", "", "path to .env file (default: ./.env if present)")
	site := fs.String("site", "", "site key from the site definitions")
	out := fs.String("out", "", "destination CSV file")
	cleanedOut := fs.String("cleaned-out", "", "destination of the cleaned table for sites cleaned at the end")
	errorLog := fs.String("error-log", "", "error log file")
	mode := fs.String("mode", "", "write mode: append or overwrite")
	start := fs.Int("start", 0, "first page to crawl")
	end := fs.Int("end", 0, "last page to crawl, inclusive (0 = until pagination ends)")
	yes := fs.Bool("yes", false, "allow appending to or overwriting an existing destination without asking")
	resume := fs.Bool("resume", false, "continue each category after its last written page")
	failFast := fs.Bool("fail-fast", false, "abort the run on the first listing extraction failure")
	maxAttempts := fs.Int("max-attempts", 0, "attempts to fetch a listing detail page before keeping the partial record")
	retryDelay := fs.Duration("retry-delay", 0, "pause between attempts")
	categories := fs.String("categories", "", "comma-separated category labels to crawl (default: all)")
	schedule := fs.String("schedule", "", "cron spec to repeat the crawl, e.g. \"@every 6h\"")
	_ = fs.Parse(os.Args[1:])

	cfg, err := configs.LoadConfig(*envPath)
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	// флаги переопределяют окружение, только если заданы явно
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "site":
			cfg.Run.Site = *site
		case "out":
			cfg.Run.Output = *out
		case "cleaned-out":
			cfg.Run.CleanedOutput = *cleanedOut
		case "error-log":
			cfg.Run.ErrorLog = *errorLog
		case "mode":
			cfg.Run.WriteMode = *mode
		case "start":
			cfg.Run.StartPage = *start
		case "end":
			cfg.Run.EndPage = *end
		case "yes":
			cfg.Run.AllowExistingOutput = *yes
		case "resume":
			cfg.Run.Resume = *resume
		case "fail-fast":
			cfg.Run.FailFast = *failFast
		case "max-attempts":
			cfg.Run.MaxDetailAttempts = *maxAttempts
		case "retry-delay":
			cfg.Run.RetryDelay = *retryDelay
		case "categories":
			cfg.Run.Categories = splitList(*categories)
		case "schedule":
			cfg.Run.Schedule = *schedule
		}
	})

	app, err := internal.NewApp(cfg, os.Stdin, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listings-puller: %v\n", err)
		os.Exit(1)
	}

	started := time.Now()
	if err := app.Run(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "listings-puller: interrupted after %s\n", time.Since(started).Round(time.Second))
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "listings-puller: %v\n", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
