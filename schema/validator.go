package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/buketp/UrbanFeed/internal/language"
	"github.com/buketp/UrbanFeed/internal/news"
)

//go:embed news_submission.schema.json
var newsSubmissionSchemaJSON string

//go:embed source_registration.schema.json
var sourceRegistrationSchemaJSON string

const (
	newsSubmissionSchemaName     = "news_submission.schema.json"
	sourceRegistrationSchemaName = "source_registration.schema.json"
)

// NewsSubmission is the wire shape of a collector payload.
type NewsSubmission struct {
	Source      *string  `json:"source,omitempty"`
	Province    *string  `json:"province,omitempty"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Summary     *string  `json:"summary,omitempty"`
	PublishedAt *string  `json:"publishedAt,omitempty"`
	TweetText   *string  `json:"tweetText,omitempty"`
	SourceID    *string  `json:"source_id,omitempty"`
	RSSURL      *string  `json:"rss_url,omitempty"`
	Language    *string  `json:"language,omitempty"`
}

// SourceRegistration is the wire shape of a directory source registration.
type SourceRegistration struct {
	Name       string  `json:"name"`
	RSSURL     string  `json:"rss_url"`
	WebsiteURL *string `json:"website_url,omitempty"`
}

type compiled struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var schemas = map[string]*compiled{
	newsSubmissionSchemaName:     {},
	sourceRegistrationSchemaName: {},
}

var schemaSources = map[string]string{
	newsSubmissionSchemaName:     newsSubmissionSchemaJSON,
	sourceRegistrationSchemaName: sourceRegistrationSchemaJSON,
}

// ValidateSubmission decodes and validates a news payload. Field problems are
// reported as *news.ValidationError keyed by wire field name.
func ValidateSubmission(payload json.RawMessage) (news.Submission, error) {
	doc, err := decodeObject(payload)
	if err != nil {
		return news.Submission{}, err
	}

	// A blank summary counts as absent.
	if summary, ok := doc["summary"].(string); ok && strings.TrimSpace(summary) == "" {
		delete(doc, "summary")
	}

	if err := validateAgainst(newsSubmissionSchemaName, doc); err != nil {
		return news.Submission{}, err
	}

	var wire NewsSubmission
	if err := remarshal(doc, &wire); err != nil {
		return news.Submission{}, err
	}

	verr := &news.ValidationError{}
	sub := news.Submission{
		SourceName:    trimmed(wire.Source),
		ProvinceName:  trimmed(wire.Province),
		Title:         strings.TrimSpace(wire.Title),
		URL:           strings.TrimSpace(wire.URL),
		Category:      news.Category(wire.Category),
		FeedURL:       trimmed(wire.RSSURL),
		Summary:       nonBlank(wire.Summary),
		GeneratedText: nonBlank(wire.TweetText),
		SourceID:      nonBlank(wire.SourceID),
		Language:      language.NormalizeCode(trimmed(wire.Language)),
	}
	if sub.SourceID != nil {
		id := strings.TrimSpace(*sub.SourceID)
		sub.SourceID = &id
	}

	if wire.SourceID != nil && sub.SourceID == nil {
		verr.Add("source_id", "must not be blank")
	}
	if sub.Title == "" {
		verr.Add("title", "must not be empty")
	}
	if err := validateHTTPURL(sub.URL); err != nil {
		verr.Add("url", err.Error())
	}
	if !sub.Category.Valid() {
		verr.Add("category", "must be one of şikayet, soru, öneri, istek")
	}
	if wire.Source != nil && len([]rune(sub.SourceName)) < 2 {
		verr.Add("source", "must be at least 2 characters")
	}
	if wire.Province != nil && len([]rune(sub.ProvinceName)) < 2 {
		verr.Add("province", "must be at least 2 characters")
	}
	if wire.Summary != nil && sub.Summary != nil && len([]rune(strings.TrimSpace(*sub.Summary))) < 10 {
		verr.Add("summary", "must be at least 10 characters")
	}

	tags := make([]string, 0, len(wire.Tags))
	for i, tag := range wire.Tags {
		clean := strings.TrimSpace(tag)
		if clean == "" {
			verr.Add("tags", fmt.Sprintf("tags[%d] must not be empty", i))
			continue
		}
		tags = append(tags, clean)
	}
	if wire.Tags != nil {
		sub.Tags = lo.Uniq(tags)
		if len(sub.Tags) > news.MaxTags {
			verr.Add("tags", fmt.Sprintf("must have at most %d items", news.MaxTags))
		}
	}

	if wire.PublishedAt != nil {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*wire.PublishedAt))
		if err != nil {
			verr.Add("publishedAt", "must be an RFC3339 date-time")
		} else {
			utc := ts.UTC()
			sub.PublishedAt = &utc
		}
	}

	if raw, present := doc["city_id"]; present {
		id, err := parsePositiveID(raw)
		if err != nil {
			verr.Add("city_id", err.Error())
		} else {
			sub.CityID = &id
		}
	}

	if len(verr.Fields) > 0 {
		return news.Submission{}, verr
	}
	return sub, nil
}

// ValidateSourceRegistration validates a source registration payload and
// returns the directory entry it describes.
func ValidateSourceRegistration(payload json.RawMessage) (news.Source, error) {
	doc, err := decodeObject(payload)
	if err != nil {
		return news.Source{}, err
	}
	if err := validateAgainst(sourceRegistrationSchemaName, doc); err != nil {
		return news.Source{}, err
	}

	var wire SourceRegistration
	if err := remarshal(doc, &wire); err != nil {
		return news.Source{}, err
	}

	verr := &news.ValidationError{}
	out := news.Source{
		Name:       strings.TrimSpace(wire.Name),
		FeedURL:    strings.TrimSpace(wire.RSSURL),
		WebsiteURL: nonBlank(wire.WebsiteURL),
		IsActive:   true,
	}

	cityID, err := parsePositiveID(doc["city_id"])
	if err != nil {
		verr.Add("city_id", err.Error())
	}
	out.CityID = cityID

	if len([]rune(out.Name)) < 2 {
		verr.Add("name", "must be at least 2 characters")
	}
	if err := validateHTTPURL(out.FeedURL); err != nil {
		verr.Add("rss_url", err.Error())
	}
	if raw, present := doc["is_active"]; present {
		switch v := raw.(type) {
		case bool:
			out.IsActive = v
		case string:
			out.IsActive = news.ParseBoolish(v, true)
		}
	}

	if len(verr.Fields) > 0 {
		return news.Source{}, verr
	}
	return out, nil
}

func loadSchema(name string) (*jsonschema.Schema, error) {
	entry, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	entry.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(name, strings.NewReader(schemaSources[name])); err != nil {
			entry.err = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile(name)
		if err != nil {
			entry.err = fmt.Errorf("compile schema: %w", err)
			return
		}
		entry.schema = schema
	})

	if entry.err != nil {
		return nil, entry.err
	}
	if entry.schema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return entry.schema, nil
}

func validateAgainst(name string, doc map[string]any) error {
	schema, err := loadSchema(name)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fieldErrors(ve)
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// fieldErrors flattens a schema error tree into one message per top-level field.
func fieldErrors(ve *jsonschema.ValidationError) *news.ValidationError {
	out := &news.ValidationError{}

	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			if missing, ok := strings.CutPrefix(e.Message, "missing properties:"); ok {
				for _, name := range strings.Split(missing, ",") {
					out.Add(strings.Trim(strings.TrimSpace(name), `"'`), "is required")
				}
				return
			}
			out.Add(fieldFromLocation(e.InstanceLocation), e.Message)
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)

	if len(out.Fields) == 0 {
		out.Add("payload", ve.Message)
	}
	return out
}

func fieldFromLocation(location string) string {
	trimmed := strings.TrimPrefix(location, "/")
	if trimmed == "" {
		return "payload"
	}
	field, _, _ := strings.Cut(trimmed, "/")
	return field
}

func decodeObject(raw []byte) (map[string]any, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, news.NewValidationError("payload", fmt.Sprintf("invalid JSON: %v", err))
	}
	doc, ok := value.(map[string]any)
	if !ok {
		return nil, news.NewValidationError("payload", "must be a JSON object")
	}
	return doc, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmedRaw := bytes.TrimSpace(raw)
	if len(trimmedRaw) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmedRaw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func remarshal(doc map[string]any, dest any) error {
	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize payload JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, dest); err != nil {
		return news.NewValidationError("payload", fmt.Sprintf("unexpected field type: %v", err))
	}
	return nil
}

func parsePositiveID(raw any) (int64, error) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return 0, fmt.Errorf("must be a positive integer")
	}

	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return id, nil
}

func validateHTTPURL(value string) error {
	if value == "" {
		return fmt.Errorf("must not be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("is not a valid URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func nonBlank(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	v := *value
	return &v
}
