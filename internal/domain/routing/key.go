package routing

import "strings"

// Key identifies which fairness pointer governs a selection. Keys are
// either state-scoped ("state:<normalized state>") or the literal
// "global". Two leads share a pointer iff they share a Key.
type Key string

// GlobalKey is the pointer key for leads routed without a state match.
const GlobalKey Key = "global"

const statePrefix = "state:"

// NormalizeState maps raw state input to its canonical form: trimmed and
// lowercased, so "Maharashtra" and "maharashtra " share one pointer and
// one caller_states binding.
func NormalizeState(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// StateKey builds the state-scoped pointer key. ok is false when the
// state is blank after normalization; such leads route globally.
func StateKey(state string) (Key, bool) {
	s := NormalizeState(state)
	if s == "" {
		return "", false
	}
	return Key(statePrefix + s), true
}

func (k Key) String() string {
	return string(k)
}

// IsGlobal reports whether the key is the global pointer key.
func (k Key) IsGlobal() bool {
	return k == GlobalKey
}
