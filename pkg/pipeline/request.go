package pipeline

import (
	"slices"
	"strings"

	"github.com/docker/briefing/pkg/cache"
)

// DefaultAspects is the baseline used when a request names no aspects.
var DefaultAspects = []string{"career_stats", "recent_form", "strengths_weaknesses"}

// Request is an accepted analysis request. It is never mutated after
// construction.
type Request struct {
	topic   string
	aspects []string
}

// NewRequest builds a Request. Aspects are trimmed and deduplicated keeping
// first-seen order; when none remain, baseline is used, or DefaultAspects if
// baseline is empty too. The topic is kept verbatim so that Validate can
// reject blank topics.
func NewRequest(topic string, aspects, baseline []string) Request {
	cleaned := dedupe(aspects)
	if len(cleaned) == 0 {
		cleaned = dedupe(baseline)
	}
	if len(cleaned) == 0 {
		cleaned = slices.Clone(DefaultAspects)
	}
	return Request{topic: topic, aspects: cleaned}
}

func dedupe(aspects []string) []string {
	var out []string
	for _, a := range aspects {
		a = strings.TrimSpace(a)
		if a == "" || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Topic returns the topic with surrounding whitespace removed.
func (r Request) Topic() string {
	return strings.TrimSpace(r.topic)
}

// Aspects returns a copy of the aspects in request order.
func (r Request) Aspects() []string {
	return slices.Clone(r.aspects)
}

// Key derives the cache key shared by both stages of this request.
func (r Request) Key() cache.Key {
	return cache.DeriveKey(r.topic, r.aspects)
}

// Validate rejects requests that cannot start a stage.
func (r Request) Validate() error {
	if strings.TrimSpace(r.topic) == "" {
		return &ValidationError{Field: "topic", Err: ErrEmptyTopic}
	}
	return nil
}
