package orchestrator

// autoExecute is the fixed allowlist of action identifiers that run without
// confirmation: read-only lookups, navigation, and preference toggles.
// Every other identifier, including unknown ones, starts pending.
var autoExecute = map[string]bool{
	"search_product": true,
	"navigate":       true,
	"toggle_theme":   true,
}

// IsAutoExecute classifies one action identifier. The mapping is pure and
// total: unknown identifiers default to pending.
func IsAutoExecute(action string) bool {
	return autoExecute[action]
}
