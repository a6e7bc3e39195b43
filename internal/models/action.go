package models

import (
	"strconv"
	"strings"
)

// ActionDescriptor is one structured operation extracted from generated
// text: what to do, with which parameters, and the human-readable line
// shown to the user before they confirm it.
type ActionDescriptor struct {
	Action       string                 `json:"action"`
	Params       map[string]interface{} `json:"params"`
	Confirmation string                 `json:"confirmation"`
}

// ParamString returns the named parameter as a trimmed string, tolerating
// numeric values the model may emit instead.
func (a ActionDescriptor) ParamString(key string) string {
	val, ok := a.Params[key]
	if !ok {
		return ""
	}
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// ParamFloat returns the named parameter as a float, accepting both JSON
// numbers and numeric strings.
func (a ActionDescriptor) ParamFloat(key string) (float64, bool) {
	val, ok := a.Params[key]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
