// Package classifier routes article URLs to fetch or skip without touching
// the network.
package classifier

import (
	"net/url"
	"strings"
)

// Decision is the outcome of classifying a URL.
type Decision int

// Possible decisions.
const (
	Fetchable Decision = iota
	SkipMediaOnly
)

func (d Decision) String() string {
	if d == SkipMediaOnly {
		return "skip_media_only"
	}
	return "fetchable"
}

// DefaultMediaSegments are the path segments that mark photo and video pages.
var DefaultMediaSegments = []string{"photo", "video"}

// Classifier matches URL path segments against a media-only list.
type Classifier struct {
	segments map[string]struct{}
}

// New builds a Classifier. An empty list falls back to DefaultMediaSegments.
func New(segments []string) *Classifier {
	if len(segments) == 0 {
		segments = DefaultMediaSegments
	}
	set := make(map[string]struct{}, len(segments))
	for _, seg := range segments {
		seg = strings.ToLower(strings.Trim(strings.TrimSpace(seg), "/"))
		if seg != "" {
			set[seg] = struct{}{}
		}
	}
	return &Classifier{segments: set}
}

// Classify returns SkipMediaOnly when any path segment is a media segment.
func (c *Classifier) Classify(rawURL string) Decision {
	path := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		path = u.Path
	}
	for _, seg := range strings.Split(path, "/") {
		if _, ok := c.segments[strings.ToLower(seg)]; ok {
			return SkipMediaOnly
		}
	}
	return Fetchable
}
