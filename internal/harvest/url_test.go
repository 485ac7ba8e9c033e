package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://www.TheAtlantic.com/Politics/Archive/2019/05/story/", "https://www.theatlantic.com/politics/archive/2019/05/story"},
		{"HTTPS://www.theatlantic.com:443/a/b?utm_source=x#comments", "https://www.theatlantic.com/a/b"},
		{"http://example.com:80/", "http://example.com"},
		{"  https://example.com/news/story  ", "https://example.com/news/story"},
		{"https://example.com:8443/news", "https://example.com:8443/news"},
	}
	for _, tc := range cases {
		got, err := NormalizeKey(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeKeyRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := NormalizeKey("/politics/archive/story")
	require.Error(t, err)

	_, err = NormalizeKey("")
	require.Error(t, err)
}

func TestNewArticleURLSharesKeyAcrossVariants(t *testing.T) {
	t.Parallel()

	a, err := NewArticleURL("https://example.com/story/", "sitemap_2019_05.xml")
	require.NoError(t, err)
	b, err := NewArticleURL("https://EXAMPLE.com/story?ref=feed", "sitemap_2019_06.xml")
	require.NoError(t, err)

	require.Equal(t, a.Key, b.Key)
	require.Equal(t, "https://example.com/story/", a.Raw)
	require.Equal(t, "sitemap_2019_06.xml", b.Source)
}

func TestRecordStorageKey(t *testing.T) {
	t.Parallel()

	key, err := ArticleRecord{URL: "HTTP://News.Example.com/b/", Key: "http://news.example.com/b"}.StorageKey()
	require.NoError(t, err)
	require.Equal(t, "http://news.example.com/b", key)

	key, err = ArticleRecord{URL: "HTTP://News.Example.com:80/B/?utm=x"}.StorageKey()
	require.NoError(t, err)
	require.Equal(t, "http://news.example.com/b", key)

	_, err = ArticleRecord{URL: "/relative"}.StorageKey()
	require.ErrorContains(t, err, "record storage key")
}
