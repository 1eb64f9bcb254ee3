package innertube

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// ParseVideoID extracts the video ID from a watch, short, live or youtu.be
// link. A bare 11-character ID is accepted as is.
func ParseVideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if ValidVideoID(raw) {
		return raw, true
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string

	switch host {
	case "youtu.be":
		id = parts[0]
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch {
		case parts[0] == "watch":
			id = u.Query().Get("v")
		case len(parts) >= 2 && (parts[0] == "shorts" || parts[0] == "live" || parts[0] == "embed"):
			id = parts[1]
		}
	}

	if !ValidVideoID(id) {
		return "", false
	}

	return id, true
}
