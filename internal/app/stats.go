package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
	"github.com/buketp/UrbanFeed/internal/globaltime"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	dayRaw := fs.String("day", "", "UTC day for the daily counters (YYYY-MM-DD, default today)")
	top := fs.Int("top", 10, "Number of cities to list")

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
	if *top < 1 {
		fmt.Fprintln(os.Stderr, "--top must be at least 1")
		return 2
	}

	day := globaltime.UTC()
	if strings.TrimSpace(*dayRaw) != "" {
		day, err = parseUTCDate(*dayRaw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--day %v\n", err)
			return 2
		}
	}
	dayStart, dayEnd := globaltime.DayBounds(day)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader, storePostgres)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()
	if err := rt.requirePool("stats"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	stats, err := rt.pool.QueryNewsStats(ctx, dayStart, dayEnd, *top)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats query failed: %v\n", err)
		return 1
	}

	return render(format, stats, func() error {
		t := stats.Totals
		fmt.Printf("day: %s\n\n", stats.Day)
		if err := writeTable([]string{"METRIC", "VALUE"}, [][]string{
			{"records", strconv.FormatInt(t.Records, 10)},
			{"with_tweet_text", strconv.FormatInt(t.WithTweetText, 10)},
			{"without_city", strconv.FormatInt(t.WithoutCity, 10)},
			{"without_source", strconv.FormatInt(t.WithoutSource, 10)},
			{"ingested_today", strconv.FormatInt(t.IngestedToday, 10)},
			{"updated_today", strconv.FormatInt(t.UpdatedToday, 10)},
			{"active_sources", strconv.FormatInt(t.ActiveSources, 10)},
			{"active_cities", strconv.FormatInt(t.ActiveCities, 10)},
		}); err != nil {
			return err
		}

		fmt.Println()
		rows := make([][]string, 0, len(stats.Categories))
		for _, c := range stats.Categories {
			rows = append(rows, []string{c.Category, strconv.FormatInt(c.Records, 10)})
		}
		if err := writeTable([]string{"CATEGORY", "RECORDS"}, rows); err != nil {
			return err
		}

		fmt.Println()
		rows = rows[:0]
		for _, c := range stats.TopCities {
			rows = append(rows, []string{pointerInt64OrEmpty(c.CityID), c.City, strconv.FormatInt(c.Records, 10)})
		}
		return writeTable([]string{"CITY_ID", "CITY", "RECORDS"}, rows)
	})
}
