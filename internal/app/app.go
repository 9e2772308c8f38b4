package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "serve":
		return runServe(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "news":
		return runNews(args[1:])
	case "cities":
		return runCities(args[1:])
	case "sources":
		return runSources(args[1:])
	case "seed":
		return runSeed(args[1:])
	case "clear":
		return runClear(args[1:])
	case "stats":
		return runStats(args[1:])
	case "hash-key":
		return runHashKey(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "urbanfeed CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  urbanfeed <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database and cache connectivity")
	fmt.Fprintln(os.Stderr, "  serve      Start the HTTP API")
	fmt.Fprintln(os.Stderr, "  ingest     Submit news items from a JSON file")
	fmt.Fprintln(os.Stderr, "  validate   Validate news item JSON files without storing them")
	fmt.Fprintln(os.Stderr, "  news       List stored news or look one up by URL")
	fmt.Fprintln(os.Stderr, "  cities     List the city directory")
	fmt.Fprintln(os.Stderr, "  sources    List, add or check news sources")
	fmt.Fprintln(os.Stderr, "  seed       Load the bundled province list into an empty directory")
	fmt.Fprintln(os.Stderr, "  clear      Delete every stored news record")
	fmt.Fprintln(os.Stderr, "  stats      Show record counts by category and city")
	fmt.Fprintln(os.Stderr, "  hash-key   Print a bcrypt hash for API_KEY_BCRYPT")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"urbanfeed <command> -h\" for command-specific flags.")
}
