// Package permissions checks the OS privacy approvals capture and hotkeys need.
package permissions

import "errors"

var (
	// ErrMicrophone is returned when audio input has not been approved.
	ErrMicrophone = errors.New("microphone permission not granted (System Settings → Privacy & Security → Microphone)")
	// ErrAccessibility is returned when global hotkeys have not been approved.
	ErrAccessibility = errors.New("accessibility permission not granted (System Settings → Privacy & Security → Accessibility)")
)
