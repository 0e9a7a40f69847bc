package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"ytcourier/internal/services"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var allowedHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

// Normalize validates a user-supplied URL and rewrites it to the canonical
// watch form. Bare host/path input gains an https scheme, short links and
// /shorts/, /live/, /embed/ paths are rewritten, and anything that is not a
// recognizable video URL is rejected with services.ErrInvalidURL.
func Normalize(raw string) (canonical, videoID string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", services.Wrap(services.ErrInvalidURL, "catalog", "normalize", "empty input", nil)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil {
		return "", "", services.Wrap(services.ErrInvalidURL, "catalog", "normalize", "unparseable url", parseErr)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", services.Wrap(services.ErrInvalidURL, "catalog", "normalize", fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}

	host := strings.ToLower(parsed.Hostname())
	if _, ok := allowedHosts[host]; !ok {
		return "", "", services.Wrap(services.ErrInvalidURL, "catalog", "normalize", fmt.Sprintf("unsupported host %q", host), nil)
	}

	videoID, err = extractVideoID(host, parsed)
	if err != nil {
		return "", "", err
	}

	return "https://www.youtube.com/watch?v=" + videoID, videoID, nil
}

func extractVideoID(host string, parsed *url.URL) (string, error) {
	var candidate string
	path := strings.Trim(parsed.EscapedPath(), "/")

	switch {
	case host == "youtu.be":
		candidate = path
	case strings.HasPrefix(path, "shorts/"),
		strings.HasPrefix(path, "live/"),
		strings.HasPrefix(path, "embed/"):
		_, candidate, _ = strings.Cut(path, "/")
	case path == "watch":
		candidate = parsed.Query().Get("v")
	default:
		return "", services.Wrap(services.ErrInvalidURL, "catalog", "normalize", fmt.Sprintf("unrecognized path %q", parsed.Path), nil)
	}

	// Trailing path segments after the id are noise from share links.
	if idx := strings.IndexByte(candidate, '/'); idx >= 0 {
		candidate = candidate[:idx]
	}
	if !videoIDPattern.MatchString(candidate) {
		return "", services.Wrap(services.ErrInvalidURL, "catalog", "normalize", fmt.Sprintf("invalid video id %q", candidate), nil)
	}
	return candidate, nil
}
