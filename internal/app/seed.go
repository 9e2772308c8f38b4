package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
)

// runSeed migrates the schema (via pool startup) and loads the bundled provinces.
func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	inserted, err := rt.directory.SeedCities(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("seed failed")
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		return 1
	}

	if inserted == 0 {
		fmt.Println("cities already present; nothing seeded")
		return 0
	}
	rt.logger.Info().Int("cities", inserted).Msg("seeded city directory")
	fmt.Printf("seeded %d cities\n", inserted)
	return 0
}
