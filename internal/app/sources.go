package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
	"github.com/buketp/UrbanFeed/internal/directory"
	"github.com/buketp/UrbanFeed/internal/feeds"
	"github.com/buketp/UrbanFeed/internal/news"
)

func runSources(args []string) int {
	if len(args) == 0 {
		printSourcesUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "list":
		return runSourcesList(args[1:])
	case "add":
		return runSourcesAdd(args[1:])
	case "check":
		return runSourcesCheck(args[1:])
	case "help", "-h", "--help":
		printSourcesUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown sources command: %s\n\n", args[0])
		printSourcesUsage()
		return 2
	}
}

type sourceListFlags struct {
	cityID string
	all    bool
}

func (f *sourceListFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.cityID, "city-id", "", "Only sources of this city")
	fs.BoolVar(&f.all, "all", false, "Include inactive sources")
}

func (f *sourceListFlags) filter() (directory.SourceFilter, error) {
	var filter directory.SourceFilter
	if raw := strings.TrimSpace(f.cityID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, fmt.Errorf("--city-id must be a positive integer")
		}
		filter.CityID = &id
	}
	if !f.all {
		active := true
		filter.Active = &active
	}
	return filter, nil
}

func runSourcesList(args []string) int {
	fs := flag.NewFlagSet("sources list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	var listFlags sourceListFlags
	listFlags.register(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	filter, err := listFlags.filter()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader, storePostgres)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	sources, err := rt.directory.ListSources(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List sources failed: %v\n", err)
		return 1
	}

	return render(format, sources, func() error {
		rows := make([][]string, 0, len(sources))
		for _, src := range sources {
			rows = append(rows, sourceRow(src))
		}
		return writeTable([]string{"ID", "CITY", "NAME", "RSS_URL", "ACTIVE"}, rows)
	})
}

func runSourcesAdd(args []string) int {
	fs := flag.NewFlagSet("sources add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	cityID := fs.Int64("city-id", 0, "City id the source reports on")
	name := fs.String("name", "", "Source display name")
	feedURL := fs.String("rss-url", "", "RSS feed URL")
	websiteURL := fs.String("website-url", "", "Website URL")
	inactive := fs.Bool("inactive", false, "Register the source as inactive")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	payload, err := sourceRegistrationPayload(*cityID, *name, *feedURL, *websiteURL, !*inactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build payload: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader, storePostgres)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	src, err := rt.directory.RegisterSource(ctx, payload)
	if err != nil {
		if ve, ok := news.IsValidation(err); ok {
			fmt.Fprintf(os.Stderr, "Invalid source: %v\n", ve)
			return 2
		}
		fmt.Fprintf(os.Stderr, "Register source failed: %v\n", err)
		return 1
	}

	return render(format, src, func() error {
		return writeTable([]string{"ID", "CITY", "NAME", "RSS_URL", "ACTIVE"}, [][]string{sourceRow(src)})
	})
}

func runSourcesCheck(args []string) int {
	fs := flag.NewFlagSet("sources check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	feedTimeout := fs.Duration("feed-timeout", 20*time.Second, "Per-feed fetch timeout")
	concurrency := fs.Int("concurrency", feeds.DefaultConcurrency, "Feeds fetched in parallel")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	var listFlags sourceListFlags
	listFlags.register(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	filter, err := listFlags.filter()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader, storePostgres)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	sources, err := rt.directory.ListSources(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List sources failed: %v\n", err)
		return 1
	}

	reports := feeds.NewChecker(*feedTimeout, *concurrency).CheckAll(ctx, sources)
	failed := 0
	for _, report := range reports {
		if !report.OK {
			failed++
			rt.logger.Warn().Str("source_id", report.SourceID).Str("rss_url", report.FeedURL).Str("error", report.Error).Msg("feed check failed")
		}
	}

	code := render(format, reports, func() error {
		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			status := "ok"
			if !r.OK {
				status = "FAIL"
			}
			rows = append(rows, []string{
				status,
				truncateForTable(r.Name, 24),
				strconv.Itoa(r.Items),
				formatUTCTimestampPtr(r.Latest),
				r.Took,
				truncateForTable(r.Error, 60),
			})
		}
		if err := writeTable([]string{"STATUS", "SOURCE", "ITEMS", "LATEST", "TOOK", "ERROR"}, rows); err != nil {
			return err
		}
		fmt.Printf("\nchecked=%d failed=%d\n", len(reports), failed)
		return nil
	})
	if code != 0 {
		return code
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// sourceRegistrationPayload encodes flags as the same JSON body POST /api/sources accepts.
func sourceRegistrationPayload(cityID int64, name, feedURL, websiteURL string, active bool) (json.RawMessage, error) {
	body := map[string]any{
		"city_id":   cityID,
		"name":      strings.TrimSpace(name),
		"rss_url":   strings.TrimSpace(feedURL),
		"is_active": active,
	}
	if website := strings.TrimSpace(websiteURL); website != "" {
		body["website_url"] = website
	}
	return json.Marshal(body)
}

func sourceRow(src news.Source) []string {
	city := src.CityName
	if city == "" {
		city = strconv.FormatInt(src.CityID, 10)
	}
	return []string{
		src.ID,
		city,
		truncateForTable(src.Name, 32),
		truncateForTable(src.FeedURL, 60),
		strconv.FormatBool(src.IsActive),
	}
}

func printSourcesUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  urbanfeed sources list [--city-id N] [--all] [--format table|json]")
	fmt.Fprintln(os.Stderr, "  urbanfeed sources add --city-id N --name NAME --rss-url URL [--website-url URL] [--inactive]")
	fmt.Fprintln(os.Stderr, "  urbanfeed sources check [--city-id N] [--all] [--feed-timeout 20s] [--concurrency 4]")
}
