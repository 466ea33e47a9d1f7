// Package hotkey registers a system-wide accelerator.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned on platforms without a global hotkey backend.
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

// Accelerator is a parsed key combination such as "Ctrl+Shift+N".
type Accelerator struct {
	Mods Modifier
	// Key is lower case: a letter, a digit, "space", "tab" or "f1".."f12".
	Key string
}

// ParseAccelerator parses a "+"-separated accelerator. Modifier names are
// case-insensitive and the key must come last.
func ParseAccelerator(s string) (Accelerator, error) {
	var acc Accelerator

	parts := strings.Split(s, "+")
	for i, part := range parts {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: empty component", s)
		}

		if mod, ok := modifierNames[p]; ok {
			if i == len(parts)-1 {
				return Accelerator{}, fmt.Errorf("invalid accelerator %q: missing key", s)
			}
			acc.Mods |= mod
			continue
		}

		if i != len(parts)-1 {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: unknown modifier %q", s, part)
		}
		if !validKey(p) {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: unsupported key %q", s, part)
		}
		acc.Key = p
	}

	return acc, nil
}

// OnPress adapts fn to a Register callback that ignores key releases.
func OnPress(fn func()) func(pressed bool) {
	return func(pressed bool) {
		if pressed {
			fn()
		}
	}
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"cmd":     ModSuper,
	"command": ModSuper,
	"super":   ModSuper,
	"meta":    ModSuper,
}

func validKey(k string) bool {
	if len(k) == 1 {
		c := k[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	switch k {
	case "space", "tab":
		return true
	}
	if strings.HasPrefix(k, "f") {
		var n int
		if _, err := fmt.Sscanf(k, "f%d", &n); err == nil && n >= 1 && n <= 12 && k == fmt.Sprintf("f%d", n) {
			return true
		}
	}
	return false
}
