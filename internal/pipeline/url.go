package pipeline

import (
	"net/url"
	"strings"
)

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
	"ref":     {},
}

// CanonicalizeURL reduces a URL to its comparison form: lower-cased,
// https-forced, www and tracking parameters stripped, trailing slash
// and fragment dropped. Returns ok=false for unparsable or relative
// URLs. Remaining query parameters keep their original order, so two
// URLs with reordered parameters are deliberately NOT equivalent.
func CanonicalizeURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	parsed, err := url.Parse(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || parsed.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(parsed.Host, "www.")

	var query string
	if parsed.RawQuery != "" {
		kept := make([]string, 0, 4)
		for _, param := range strings.Split(parsed.RawQuery, "&") {
			if !strings.Contains(param, "=") {
				continue
			}
			key := param[:strings.Index(param, "=")]
			if isTrackingParam(key) {
				continue
			}
			kept = append(kept, param)
		}
		query = strings.Join(kept, "&")
	}

	path := parsed.EscapedPath()
	if path == "/" {
		path = ""
	} else {
		path = strings.TrimRight(path, "/")
	}

	canonical := "https://" + host + path
	if query != "" {
		canonical += "?" + query
	}
	return canonical, true
}

func isTrackingParam(key string) bool {
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, tracked := trackingQueryKeys[key]
	return tracked
}
