package node

import (
	"net/url"
	"strings"
)

// AnonymousStation is used for connections without a station identifier when anonymous stations are allowed
const AnonymousStation = "UNKNOWN"

// ParseStationPath extracts the backend label and the station identifier from the request path,
// e.g., "/CS/station-42" -> ("CS", "station-42").
// The prefix the WebSocket handler is mounted at must be stripped beforehand.
func ParseStationPath(path string, allowAnonymous bool) (backend string, station string, err error) {
	segments := []string{}

	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}

		unescaped, uerr := url.PathUnescape(part)

		if uerr != nil {
			return "", "", UnidentifiedStation.Wrap(uerr, "invalid path: %s", path)
		}

		segments = append(segments, unescaped)
	}

	if len(segments) > 0 {
		backend = segments[0]
	}

	if len(segments) >= 2 && segments[1] != "" {
		return backend, segments[1], nil
	}

	if allowAnonymous {
		return backend, AnonymousStation, nil
	}

	return backend, "", UnidentifiedStation.New("no station identifier in path: %s", path)
}
