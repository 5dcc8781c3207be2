// Command feedcheck fetches one advisory feed, parses it, and prints what the
// ingestion pipeline would see: declared namespaces, raw entries, and the
// normalized observations. Useful for debugging upstream format changes
// without touching the database.
//
// Usage:
//
//	go run ./cmd/feedcheck -url https://www.nhc.noaa.gov/index-ep.xml
//	go run ./cmd/feedcheck -file testdata/mock_feed.xml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
	"github.com/couchcryptid/storm-advisory-ingest/internal/feed"
	"github.com/couchcryptid/storm-advisory-ingest/internal/pipeline"
)

var namespaceRe = regexp.MustCompile(`xmlns(?::([A-Za-z0-9]+))?="([^"]+)"`)

func main() {
	feedURL := flag.String("url", "", "feed URL to fetch")
	file := flag.String("file", "", "local feed document to read instead of fetching")
	timeout := flag.Duration("timeout", 30*time.Second, "fetch timeout")
	flag.Parse()

	if (*feedURL == "") == (*file == "") {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "exactly one of -url or -file is required")
		os.Exit(2)
	}

	if code := run(*feedURL, *file, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(feedURL, file string, timeout time.Duration) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var data []byte
	var err error
	source := file
	if feedURL != "" {
		source = feedURL
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		client := feed.NewClient(timeout, 2.0, logger)
		data, err = client.Fetch(ctx, feedURL)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read feed: %v\n", err)
		return 1
	}

	fmt.Printf("feed: %s (%d bytes)\n", source, len(data))
	printNamespaces(data)

	parser := feed.NewParser(logger)
	entries, err := parser.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse feed: %v (feed error: %v)\n", err, pipeline.IsFeedError(err))
		return 1
	}

	// Normalization needs a region for ID and wallet URL derivation only;
	// a placeholder is fine here.
	region := domain.Region{ID: "check", Name: "feedcheck", FeedURL: source}

	var seen, skipped int
	for raw := range entries {
		seen++
		obs, err := domain.NormalizeAdvisory(raw, region)
		if err != nil {
			skipped++
			fmt.Printf("\nentry %d: SKIPPED: %v\n", seen, err)
			fmt.Printf("  raw title: %s\n", raw[domain.FieldTitle])
			continue
		}
		printObservation(seen, obs)
	}

	fmt.Printf("\n%d cyclone entries, %d skipped\n", seen, skipped)
	return 0
}

func printNamespaces(data []byte) {
	matches := namespaceRe.FindAllStringSubmatch(string(data), -1)
	if len(matches) == 0 {
		fmt.Println("namespaces: none declared")
		return
	}
	fmt.Println("namespaces:")
	printed := map[string]bool{}
	for _, m := range matches {
		prefix := m[1]
		if prefix == "" {
			prefix = "(default)"
		}
		line := fmt.Sprintf("  %s = %s", prefix, m[2])
		if !printed[line] {
			printed[line] = true
			fmt.Println(line)
		}
	}
}

func printObservation(n int, obs domain.Observation) {
	fmt.Printf("\nentry %d: %s\n", n, obs.StormID)
	fmt.Printf("  name:        %s\n", obs.Name)
	fmt.Printf("  type:        %s\n", obs.StormType)
	fmt.Printf("  season:      %d\n", obs.Season)
	fmt.Printf("  report time: %s\n", obs.ReportTime.Format(time.RFC3339))
	if obs.Latitude != nil && obs.Longitude != nil {
		fmt.Printf("  center:      %.2f, %.2f\n", *obs.Latitude, *obs.Longitude)
	}
	if obs.WindSpeed != nil {
		fmt.Printf("  wind:        %d mph\n", *obs.WindSpeed)
	}
	if obs.Pressure != nil {
		fmt.Printf("  pressure:    %d mb\n", *obs.Pressure)
	}
	if obs.Movement != "" {
		fmt.Printf("  movement:    %s\n", obs.Movement)
	}
	if obs.Wallet != "" {
		fmt.Printf("  wallet:      %s (%s)\n", obs.Wallet, obs.WalletURL)
	}
	if obs.Headline != "" {
		fmt.Printf("  headline:    %s\n", obs.Headline)
	}
}
