package news

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Merge combines an incoming candidate with the record already stored under
// the same fingerprint. Present incoming fields win, absent ones keep the
// stored value, tags are unioned and id/createdAt are set only once.
// A nil existing record yields the record to insert.
func Merge(existing *Record, incoming Record, now time.Time) Record {
	if existing == nil {
		out := incoming
		if strings.TrimSpace(out.ID) == "" {
			out.ID = uuid.NewString()
		}
		if out.CreatedAt.IsZero() {
			out.CreatedAt = now.UTC().Truncate(time.Microsecond)
		}
		if strings.TrimSpace(out.SourceName) == "" {
			out.SourceName = UnknownSourceName
		}
		out.Tags = UnionTags(nil, incoming.Tags)
		return out
	}

	out := *existing
	out.Fingerprint = incoming.Fingerprint
	out.Tags = UnionTags(existing.Tags, incoming.Tags)

	out.Category = Category(pickString(string(incoming.Category), string(existing.Category)))
	out.ProvinceName = pickString(incoming.ProvinceName, existing.ProvinceName)
	out.Title = pickString(incoming.Title, existing.Title)
	out.CanonicalURL = pickString(incoming.CanonicalURL, existing.CanonicalURL)
	out.SourceName = mergeSourceName(existing.SourceName, incoming.SourceName)

	out.Summary = pickText(incoming.Summary, existing.Summary)
	out.GeneratedText = pickText(incoming.GeneratedText, existing.GeneratedText)
	out.Language = pickText(incoming.Language, existing.Language)

	if incoming.PublishedAt != nil && !incoming.PublishedAt.IsZero() {
		out.PublishedAt = incoming.PublishedAt
	}
	if incoming.CityID != nil {
		out.CityID = incoming.CityID
	}
	if incoming.SourceID != nil && strings.TrimSpace(*incoming.SourceID) != "" {
		out.SourceID = incoming.SourceID
	}
	return out
}

// UnionTags returns existing followed by unseen incoming tags. An empty
// incoming list leaves existing untouched.
func UnionTags(existing, incoming []string) []string {
	combined := make([]string, 0, len(existing)+len(incoming))
	combined = append(combined, existing...)
	combined = append(combined, incoming...)
	combined = lo.Filter(combined, func(tag string, _ int) bool {
		return strings.TrimSpace(tag) != ""
	})
	return lo.Uniq(combined)
}

func mergeSourceName(existing, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || (incoming == UnknownSourceName && strings.TrimSpace(existing) != "") {
		return existing
	}
	return incoming
}

func pickString(incoming, existing string) string {
	if strings.TrimSpace(incoming) != "" {
		return incoming
	}
	return existing
}

func pickText(incoming, existing *string) *string {
	if incoming != nil && strings.TrimSpace(*incoming) != "" {
		return incoming
	}
	return existing
}
