package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
)

func runCities(args []string) int {
	fs := flag.NewFlagSet("cities", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	all := fs.Bool("all", false, "Include inactive cities")

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

	cities, err := rt.directory.ListCities(ctx, !*all)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List cities failed: %v\n", err)
		return 1
	}

	return render(format, cities, func() error {
		rows := make([][]string, 0, len(cities))
		for _, city := range cities {
			code := ""
			if city.Code != nil {
				code = strconv.Itoa(int(*city.Code))
			}
			rows = append(rows, []string{
				strconv.FormatInt(city.ID, 10),
				code,
				city.Name,
				strconv.FormatBool(city.IsActive),
			})
		}
		return writeTable([]string{"ID", "CODE", "NAME", "ACTIVE"}, rows)
	})
}
