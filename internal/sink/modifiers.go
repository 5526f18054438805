package sink

import "strings"

// Modifiers tracks latched and toggled modifier keys between commits.
// A latch (one-shot shift) applies to the next character only; a toggle
// (caps lock) holds until toggled off.
type Modifiers struct {
	caps    bool
	latched string
}

// Toggle flips a toggled modifier and reports whether it is now active.
func (m *Modifiers) Toggle(action string) bool {
	switch action {
	case "caps-lock":
		m.caps = !m.caps
		return m.caps
	default:
		return false
	}
}

// Latch arms a one-shot modifier; latching the same action again disarms it.
func (m *Modifiers) Latch(action string) {
	if m.latched == action {
		m.latched = ""
		return
	}
	m.latched = action
}

// UppercaseActive reports whether the next character should be uppercased.
func (m *Modifiers) UppercaseActive() bool {
	return m.caps || m.latched == "shift"
}

// Apply transforms text per the active modifiers and consumes any latch.
func (m *Modifiers) Apply(text string) string {
	if m.UppercaseActive() {
		text = strings.ToUpper(text)
	}
	m.latched = ""
	return text
}
