//go:build !linux && !darwin

package hotkey

// New reports ErrUnsupported; the terminal and tray controls still work.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
