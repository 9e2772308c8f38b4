package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/buketp/UrbanFeed/internal/fingerprint"
	"github.com/buketp/UrbanFeed/internal/news"
	payloadschema "github.com/buketp/UrbanFeed/schema"
)

// fileCheck is the validation verdict for one submission file.
type fileCheck struct {
	Path        string            `json:"path"`
	Valid       bool              `json:"valid"`
	Category    news.Category     `json:"category,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
	duplicateOf string
}

type validateSummary struct {
	Scanned    int                   `json:"scanned"`
	Valid      int                   `json:"valid"`
	Invalid    int                   `json:"invalid"`
	Duplicates int                   `json:"duplicates"`
	Categories map[news.Category]int `json:"categories"`
	Files      []fileCheck           `json:"files"`
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dir := fs.String("dir", "testdata/submissions", "Directory containing .json submission files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")

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

	root := strings.TrimSpace(*dir)
	files, err := collectJSONFiles(root, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no .json files found under %s\n", root)
		return 1
	}

	summary := validateFiles(files)

	code := render(format, summary, func() error {
		for _, check := range summary.Files {
			switch {
			case !check.Valid:
				fmt.Fprintf(os.Stderr, "INVALID %s: %s\n", check.Path, joinFieldErrors(check.Errors))
			case check.duplicateOf != "":
				fmt.Fprintf(os.Stderr, "DUPLICATE %s: same canonical URL as %s\n", check.Path, check.duplicateOf)
			}
		}
		fmt.Printf(
			"validate scanned=%d valid=%d invalid=%d duplicates=%d dir=%s recursive=%t\n",
			summary.Scanned, summary.Valid, summary.Invalid, summary.Duplicates, root, *recursive,
		)
		return nil
	})
	if code != 0 {
		return code
	}
	if summary.Invalid > 0 {
		return 1
	}
	return 0
}

// validateFiles runs every file through the submission schema. Files that
// canonicalize to an already-seen URL are valid but counted as duplicates,
// since ingesting them would merge rather than create.
func validateFiles(paths []string) validateSummary {
	summary := validateSummary{Categories: make(map[news.Category]int)}
	seen := make(map[string]string, len(paths))

	for _, path := range paths {
		summary.Scanned++
		check := checkFile(path)
		if !check.Valid {
			summary.Invalid++
			summary.Files = append(summary.Files, check)
			continue
		}

		summary.Valid++
		summary.Categories[check.Category]++
		if first, ok := seen[check.Fingerprint]; ok {
			summary.Duplicates++
			check.duplicateOf = first
		} else {
			seen[check.Fingerprint] = path
		}
		summary.Files = append(summary.Files, check)
	}
	return summary
}

func checkFile(path string) fileCheck {
	check := fileCheck{Path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		check.Errors = map[string]string{"file": fmt.Sprintf("read failed: %v", err)}
		return check
	}
	if !json.Valid(raw) {
		check.Errors = map[string]string{"file": "malformed JSON"}
		return check
	}

	sub, err := payloadschema.ValidateSubmission(json.RawMessage(raw))
	if err != nil {
		if ve, ok := news.IsValidation(err); ok {
			check.Errors = ve.Fields
		} else {
			check.Errors = map[string]string{"payload": err.Error()}
		}
		return check
	}

	_, fp := fingerprint.FromURL(sub.URL)
	check.Valid = true
	check.Category = sub.Category
	check.Fingerprint = fp
	return check
}

func joinFieldErrors(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+fields[key])
	}
	return strings.Join(parts, "; ")
}

// collectJSONFiles lists .json files under root in lexical order, skipping
// dotfiles and dot-directories.
func collectJSONFiles(root string, recursive bool) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("directory path is empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if path != root && (hidden || !recursive) {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden && strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
