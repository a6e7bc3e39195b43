package protocol

import (
	"encoding/json"
	"strings"

	"daftarchat/internal/models"
)

const (
	startMarker = "[ACTION]"
	endMarker   = "[/ACTION]"
)

// Parse splits a generated reply into user-visible prose and the embedded
// action descriptors. Marker pairs are matched non-greedily left to right;
// a payload that fails to decode is left in the prose untouched and parsing
// continues after it. The returned slice preserves appearance order.
func Parse(reply string) (string, []models.ActionDescriptor) {
	var (
		actions []models.ActionDescriptor
		display strings.Builder
	)

	rest := reply
	for {
		start := strings.Index(rest, startMarker)
		if start < 0 {
			display.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+len(startMarker):], endMarker)
		if end < 0 {
			display.WriteString(rest)
			break
		}
		payload := rest[start+len(startMarker) : start+len(startMarker)+end]
		next := start + len(startMarker) + end + len(endMarker)

		action, ok := decodeAction(payload)
		if ok {
			display.WriteString(rest[:start])
			actions = append(actions, action)
		} else {
			// malformed block stays visible
			display.WriteString(rest[:next])
		}
		rest = rest[next:]
	}

	return strings.TrimSpace(display.String()), actions
}

func decodeAction(payload string) (models.ActionDescriptor, bool) {
	var action models.ActionDescriptor
	if err := json.Unmarshal([]byte(payload), &action); err != nil {
		return models.ActionDescriptor{}, false
	}
	if strings.TrimSpace(action.Action) == "" {
		return models.ActionDescriptor{}, false
	}
	if action.Params == nil {
		action.Params = map[string]interface{}{}
	}
	return action, true
}
