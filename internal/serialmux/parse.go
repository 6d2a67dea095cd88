package serialmux

import "strings"

const (
	EventTypeReflectance = "reflectance"
	EventTypeEcho        = "echo"
	EventTypeProximity   = "proximity"
	EventTypeInfo        = "info"
	EventTypeUnknown     = "unknown"
)

// ClassifyPayload inspects a line from the I/O board and returns a simple
// event type token based on its record prefix. Lines starting with '#' are
// firmware banners and diagnostics.
func ClassifyPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(payload, "R,"):
		return EventTypeReflectance
	case strings.HasPrefix(payload, "E,"):
		return EventTypeEcho
	case strings.HasPrefix(payload, "P,"):
		return EventTypeProximity
	case strings.HasPrefix(payload, "#"):
		return EventTypeInfo
	}
	return EventTypeUnknown
}

var eventTypes = [...]string{
	EventTypeReflectance,
	EventTypeEcho,
	EventTypeProximity,
	EventTypeInfo,
	EventTypeUnknown,
}

const numEventTypes = len(eventTypes)

func eventIndex(kind string) int {
	for i, name := range eventTypes {
		if name == kind {
			return i
		}
	}
	return numEventTypes - 1
}
