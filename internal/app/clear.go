package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
)

func runClear(args []string) int {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Report how many records would be deleted")
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if !*dryRun && !*force {
		ok, err := confirmDangerousAction(os.Stdin, "Delete every stored news record?")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader, storePostgres)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	if *dryRun {
		count, err := rt.news.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
			return 1
		}
		fmt.Printf("dry-run: would delete %d records\n", count)
		return 0
	}

	deleted, err := rt.news.Clear(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("clear failed")
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		return 1
	}
	rt.logger.Warn().Int64("deleted", deleted).Msg("news records cleared")
	fmt.Printf("deleted %d records\n", deleted)
	return 0
}

func confirmDangerousAction(in io.Reader, prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", strings.TrimSpace(prompt))
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
