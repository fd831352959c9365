// Package useragent classifies raw User-Agent and Referer headers into the
// coarse buckets the dashboard reports on.
package useragent

import (
	"net/url"
	"strings"
)

// Device types.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// SourceDirect is reported when a visit carries no usable referrer.
const SourceDirect = "direct"

var botMarkers = []string{
	"bot", "crawler", "spider", "crawling", "slurp",
	"googlebot", "bingbot", "duckduckbot", "baiduspider", "yandex",
	"facebookexternalhit", "twitterbot", "linkedinbot", "embedly",
	"headlesschrome", "lighthouse", "pingdom", "uptimerobot",
	"curl/", "wget/", "python-requests", "go-http-client",
}

// IsBot reports whether ua looks like an automated client. Matching is case-insensitive.
func IsBot(ua string) bool {
	lower := strings.ToLower(ua)
	for _, marker := range botMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// DeviceType buckets ua into desktop, mobile or tablet.
func DeviceType(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "ipad"),
		strings.Contains(lower, "tablet"),
		strings.Contains(lower, "kindle"),
		strings.Contains(lower, "silk/"),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return DeviceTablet
	case strings.Contains(lower, "mobi"),
		strings.Contains(lower, "iphone"),
		strings.Contains(lower, "ipod"),
		strings.Contains(lower, "android"),
		strings.Contains(lower, "windows phone"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// Browser returns the browser family. Order matters: Edge and Opera also
// announce Chrome, and Chrome also announces Safari.
func Browser(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case lower == "":
		return "Unknown"
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge/"):
		return "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		return "Opera"
	case strings.Contains(lower, "samsungbrowser"):
		return "Samsung Internet"
	case strings.Contains(lower, "firefox/"), strings.Contains(lower, "fxios"):
		return "Firefox"
	case strings.Contains(lower, "chrome/"), strings.Contains(lower, "crios"):
		return "Chrome"
	case strings.Contains(lower, "safari/"):
		return "Safari"
	case strings.Contains(lower, "msie"), strings.Contains(lower, "trident/"):
		return "Internet Explorer"
	default:
		return "Other"
	}
}

var knownSources = []struct {
	marker string
	source string
}{
	{"google.", "google"},
	{"bing.", "bing"},
	{"yandex.", "yandex"},
	{"duckduckgo.", "duckduckgo"},
	{"facebook.", "facebook"},
	{"fb.", "facebook"},
	{"instagram.", "instagram"},
	{"t.co", "twitter"},
	{"twitter.", "twitter"},
	{"x.com", "twitter"},
	{"linkedin.", "linkedin"},
	{"lnkd.in", "linkedin"},
	{"reddit.", "reddit"},
	{"youtube.", "youtube"},
	{"t.me", "telegram"},
	{"telegram.", "telegram"},
	{"chatgpt.", "chatgpt"},
}

// ReferrerSource maps a referrer URL to a named source. Well-known hosts get their
// network name, other hosts are reported by hostname without "www.", and an empty
// or unparsable referrer is "direct".
func ReferrerSource(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return SourceDirect
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return SourceDirect
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, known := range knownSources {
		if host == known.marker || strings.HasPrefix(host, known.marker) || strings.Contains(host, "."+known.marker) {
			return known.source
		}
	}
	return host
}
