package pipeline

import "testing"

func TestCanonicalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"empty", "", "", false},
		{"relative", "/news/story.html", "", false},
		{"garbage", "not a url at all", "", false},
		{"plain", "https://example.com/news/story", "https://example.com/news/story", true},
		{"lowercase and www", "HTTPS://WWW.Example.COM/News", "https://example.com/news", true},
		{"http upgraded", "http://example.com/story", "https://example.com/story", true},
		{"trailing slash", "https://example.com/story/", "https://example.com/story", true},
		{"root slash", "https://example.com/", "https://example.com", true},
		{"fragment dropped", "https://example.com/story#comments", "https://example.com/story", true},
		{"utm stripped", "https://example.com/story?utm_source=feed&utm_medium=rss", "https://example.com/story", true},
		{"tracking ids stripped", "https://example.com/story?fbclid=abc&gclid=def&id=9", "https://example.com/story?id=9", true},
		{"bare param dropped", "https://example.com/story?share&id=9", "https://example.com/story?id=9", true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := CanonicalizeURL(tc.in)
			if ok != tc.ok {
				t.Fatalf("CanonicalizeURL(%q) ok = %t, want %t", tc.in, ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("CanonicalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalizeURLEquivalence(t *testing.T) {
	t.Parallel()

	a, okA := CanonicalizeURL("https://www.EXAMPLE.com/path/?utm_source=a&id=1")
	b, okB := CanonicalizeURL("https://example.com/path?id=1")
	if !okA || !okB {
		t.Fatalf("expected both URLs to canonicalize: %t %t", okA, okB)
	}
	if a != b {
		t.Fatalf("equivalent URLs differ after canonicalization: %q vs %q", a, b)
	}
}

// Parameter order is part of the canonical form: reordering query
// parameters produces a different URL.
func TestCanonicalizeURLPreservesParameterOrder(t *testing.T) {
	t.Parallel()

	a, _ := CanonicalizeURL("https://example.com/story?id=1&page=2")
	b, _ := CanonicalizeURL("https://example.com/story?page=2&id=1")
	if a == b {
		t.Fatalf("parameter order was not preserved: %q", a)
	}
}

func TestCompareURLs(t *testing.T) {
	t.Parallel()

	url1 := "https://example.com/story?id=1"
	url1Tracked := "https://www.example.com/story/?utm_source=x&id=1"
	url2 := "https://example.com/other"
	junk := "%%%"

	str := func(s string) *string { return &s }

	cases := []struct {
		name string
		a, b *string
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", str(url1), nil, false},
		{"equivalent", str(url1), str(url1Tracked), true},
		{"different", str(url1), str(url2), false},
		{"both unparsable", str(junk), str(junk), true},
		{"one unparsable", str(url1), str(junk), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CompareURLs(tc.a, tc.b); got != tc.want {
				t.Fatalf("CompareURLs = %t, want %t", got, tc.want)
			}
		})
	}
}
