package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
	"github.com/buketp/UrbanFeed/internal/news"
)

func runNews(args []string) int {
	fs := flag.NewFlagSet("news", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	lookupURL := fs.String("url", "", "Look up the record for this URL instead of listing")

	var params news.ListParams
	fs.StringVar(&params.Source, "source", "", "Exact source name")
	fs.StringVar(&params.Province, "province", "", "Province name (case-insensitive)")
	fs.StringVar(&params.Category, "category", "", "Category")
	fs.StringVar(&params.CityID, "city-id", "", "City id")
	fs.StringVar(&params.SourceID, "source-id", "", "Source id")
	fs.StringVar(&params.AIOnly, "ai-only", "", "Only records with generated text (1/true/yes/on)")
	fs.StringVar(&params.Q, "q", "", "Substring over title, summary, generated text and tags")
	fs.StringVar(&params.Limit, "limit", "", "Page size (1..500, default 50)")
	fs.StringVar(&params.Offset, "offset", "", "Page offset")
	fs.StringVar(&params.Order, "order", "", "asc or desc")

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader, storePostgres)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	if strings.TrimSpace(*lookupURL) != "" {
		rec, err := rt.news.Lookup(ctx, *lookupURL)
		if errors.Is(err, news.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "No record for that URL")
			return 1
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
			return 1
		}
		return render(format, rec, func() error {
			return writeTable(newsHeaders(), [][]string{newsRow(rec)})
		})
	}

	page, err := rt.news.List(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		return 1
	}
	return render(format, page, func() error {
		rows := make([][]string, 0, len(page.Items))
		for _, rec := range page.Items {
			rows = append(rows, newsRow(rec))
		}
		if err := writeTable(newsHeaders(), rows); err != nil {
			return err
		}
		fmt.Printf("\nshowing %d of %d (offset=%d order=%s)\n", len(page.Items), page.Total, page.Offset, page.Order)
		return nil
	})
}

func newsHeaders() []string {
	return []string{"FINGERPRINT", "WHEN", "CATEGORY", "SOURCE", "PROVINCE", "TITLE", "AI"}
}

func newsRow(rec news.Record) []string {
	ai := ""
	if rec.HasGeneratedText() {
		ai = "yes"
	}
	return []string{
		rec.Fingerprint,
		formatUTCTimestamp(rec.EffectiveTime()),
		string(rec.Category),
		truncateForTable(rec.SourceName, 24),
		truncateForTable(rec.ProvinceName, 16),
		truncateForTable(rec.Title, 60),
		ai,
	}
}
