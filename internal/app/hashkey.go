package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/buketp/UrbanFeed/internal/auth"
)

// runHashKey prints a bcrypt hash suitable for API_KEY_BCRYPT.
func runHashKey(args []string) int {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	key := fs.String("key", "", "API key to hash (read from stdin when empty)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	raw := strings.TrimSpace(*key)
	if raw == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "--key or a key on stdin is required")
			return 2
		}
		raw = strings.TrimSpace(line)
	}

	hash, err := auth.HashKey(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash failed: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
