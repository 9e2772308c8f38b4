package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideVar names a .env file that takes priority over the --env flag.
const OverrideVar = "URBANFEED_ENV_FILE"

// EnvLoader loads .env files in a fixed priority order.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers --env on fs and returns its loader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}
	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load applies the first readable candidate and returns its path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}
	log.SetOutput(os.Stderr)

	candidates := l.candidates()
	for _, path := range candidates {
		if err := godotenv.Overload(path); err == nil {
			log.Printf("Loaded environment from: %s", path)
			return path, nil
		}
	}
	return "", fmt.Errorf("failed to load env file from %s", strings.Join(candidates, ", "))
}

// Optional behaves like Load but treats a missing file as fine.
func (l *EnvLoader) Optional() string {
	path, err := l.Load()
	if err != nil {
		return ""
	}
	return path
}

func (l *EnvLoader) candidates() []string {
	out := make([]string, 0, 4)
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		for _, existing := range out {
			if existing == path {
				return
			}
		}
		out = append(out, path)
	}

	add(os.Getenv(OverrideVar))
	requested := ""
	if l.value != nil {
		requested = strings.TrimSpace(*l.value)
	}
	if requested == "" {
		requested = l.defaultPath
	}
	add(requested)
	if base := filepath.Base(requested); base != "." && base != requested {
		add(base)
	}
	add(l.defaultPath)
	return out
}
