package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/buketp/UrbanFeed/internal/cli"
	"github.com/buketp/UrbanFeed/internal/ingest"
	"github.com/buketp/UrbanFeed/internal/news"
)

type ingestOutcome struct {
	Index       int    `json:"index"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Created     bool   `json:"created"`
	Source      string `json:"source_strategy,omitempty"`
	City        string `json:"city_strategy,omitempty"`
	Error       string `json:"error,omitempty"`
}

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "JSON file with one submission or an array of them (- for stdin)")
	store := fs.String("store", storePostgres, "Record store: postgres or memory")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}
	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	kind, err := parseStoreKind(*store)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	raw, err := readPayloadFile(*file, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 1
	}
	payloads, err := splitPayloads(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader, kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	outcomes, failed := submitAll(ctx, rt.news, payloads)

	code := render(format, outcomes, func() error {
		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			status := "merged"
			switch {
			case o.Error != "":
				status = "error"
			case o.Created:
				status = "created"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", o.Index),
				status,
				o.Fingerprint,
				o.Source,
				o.City,
				truncateForTable(o.Error, 60),
			})
		}
		return writeTable([]string{"#", "STATUS", "FINGERPRINT", "SOURCE_BY", "CITY_BY", "ERROR"}, rows)
	})
	if code != 0 {
		return code
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func submitAll(ctx context.Context, svc *ingest.Service, payloads []json.RawMessage) ([]ingestOutcome, int) {
	outcomes := make([]ingestOutcome, 0, len(payloads))
	failed := 0
	for i, payload := range payloads {
		outcome := ingestOutcome{Index: i}
		result, err := svc.Submit(ctx, payload)
		if err != nil {
			failed++
			outcome.Error = describeSubmitError(err)
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.Fingerprint = result.Record.Fingerprint
		outcome.Created = result.Created
		outcome.Source = string(result.Resolution.SourceStrategy)
		outcome.City = string(result.Resolution.CityStrategy)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, failed
}

func describeSubmitError(err error) string {
	if ve, ok := news.IsValidation(err); ok {
		return ve.Error()
	}
	return err.Error()
}

func readPayloadFile(path string, stdin io.Reader) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(strings.TrimSpace(path))
}

// splitPayloads accepts a single JSON object or an array of objects.
func splitPayloads(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("malformed JSON")
		}
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("malformed JSON array: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("payload array is empty")
	}
	return items, nil
}
