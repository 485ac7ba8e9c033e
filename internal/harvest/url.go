package harvest

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeKey reduces a URL to its dedup key: lowercased scheme, host and
// path with default ports, query, fragment, and trailing slashes removed.
func NormalizeKey(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	}
	if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	path := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")

	return scheme + "://" + host + path, nil
}

// NewArticleURL builds an ArticleURL discovered in the given sitemap.
func NewArticleURL(rawURL, source string) (ArticleURL, error) {
	raw := strings.TrimSpace(rawURL)
	key, err := NormalizeKey(raw)
	if err != nil {
		return ArticleURL{}, err
	}
	return ArticleURL{Raw: raw, Key: key, Source: source}, nil
}

// StorageKey is the identity persistent sinks upsert on: the record's dedup
// key, or the normalized URL when the key was not stamped. Every URL variant
// the dedup store treats as one article maps to one stored row or object.
func (r ArticleRecord) StorageKey() (string, error) {
	if r.Key != "" {
		return r.Key, nil
	}
	key, err := NormalizeKey(r.URL)
	if err != nil {
		return "", fmt.Errorf("record storage key: %w", err)
	}
	return key, nil
}
