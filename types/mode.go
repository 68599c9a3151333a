// Package types defines core domain types shared by the snapfeed packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// TransportMode selects the delivery sink for the lifetime of the process.
// It is chosen once at startup and never switched at runtime.
type TransportMode string

const (
	// ModeRequestUpload delivers each frame with an authenticated HTTP request.
	ModeRequestUpload TransportMode = "http"
	// ModePublishMessage publishes each frame as one message to a broker feed.
	ModePublishMessage TransportMode = "mqtt"
)

// ErrInvalidMode is returned for a mode value that is neither HTTP nor MQTT.
// It is a configuration error and must stop the agent before the loop starts.
var ErrInvalidMode = errors.New("invalid mode")

// ParseTransportMode parses the operator-supplied mode.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseTransportMode(s string) (TransportMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HTTP":
		return ModeRequestUpload, nil
	case "MQTT":
		return ModePublishMessage, nil
	default:
		return "", fmt.Errorf("%w: %q (must be HTTP or MQTT)", ErrInvalidMode, s)
	}
}

// String returns the operator-facing spelling of the mode.
func (m TransportMode) String() string {
	return strings.ToUpper(string(m))
}
