// Package tui provides terminal user interface components for guest-ctl.
//
// The allocation picker lists every guest on the host and returns the
// operator's choice:
//
//	result, err := tui.RunPicker(items)
//	switch result.Action {
//	case tui.ActionConnect:
//	    // print the ssh command for result.Item
//	case tui.ActionToggle:
//	    // start or stop result.Item's container
//	case tui.ActionDown:
//	    // release result.Item
//	case tui.ActionQuit:
//	}
//
// Keys: enter (connect), s (start/stop), d (down), / (filter), q (quit).
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
