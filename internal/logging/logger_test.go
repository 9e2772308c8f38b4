package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterProductionIsJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter("production", "info", &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	componentLogger := Component(logger, "ingest")
	componentLogger.Info().Str("fingerprint", "abc").Msg("stored")
	logger.Debug().Msg("hidden")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "urbanfeed" || line["component"] != "ingest" || line["env"] != "production" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNewWithWriterRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewWithWriter("local", "loud", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}
