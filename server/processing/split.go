package processing

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultReasoningTag is the tag most reasoning models wrap their
// deliberation in.
const DefaultReasoningTag = "think"

var defaultSplitter = NewSplitter(DefaultReasoningTag)

// Splitter separates a <tag>...</tag> reasoning region from the rest of a
// completion. It holds only a compiled pattern and is safe for concurrent use.
type Splitter struct {
	tag     string
	pattern *regexp.Regexp
}

// NewSplitter returns a Splitter for the given tag name, e.g. "think".
// The tag is matched literally.
func NewSplitter(tag string) *Splitter {
	quoted := regexp.QuoteMeta(tag)
	return &Splitter{
		tag:     tag,
		pattern: regexp.MustCompile(fmt.Sprintf(`(?s)<%s>(.*?)</%s>`, quoted, quoted)),
	}
}

// Tag returns the tag name the splitter matches.
func (s *Splitter) Tag() string {
	return s.tag
}

// Split never fails. Think is the trimmed content of the first region.
// Response is the text with every region removed, trimmed. An opening tag
// without a closing one is not a region.
func (s *Splitter) Split(text string) SplitResult {
	var think string
	if m := s.pattern.FindStringSubmatch(text); m != nil {
		think = strings.TrimSpace(m[1])
	}

	return SplitResult{
		Think:    think,
		Response: strings.TrimSpace(s.pattern.ReplaceAllString(text, "")),
	}
}

// SplitThink splits text on the default <think> tag.
func SplitThink(text string) SplitResult {
	return defaultSplitter.Split(text)
}
