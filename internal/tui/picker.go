package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/health"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionConnect
	ActionToggle
	ActionDown
	ActionQuit
)

// Item is one allocation as shown in the picker.
type Item struct {
	Record *config.AllocationRecord
	Status health.Status
	Uptime string
}

// PickerResult holds the result of the picker
type PickerResult struct {
	Action Action
	Item   *Item
}

// allocationItem implements list.Item
type allocationItem struct {
	Item
}

func (i allocationItem) Title() string {
	return fmt.Sprintf("%s  :%d", i.Record.Username, i.Record.Port)
}

func (i allocationItem) Description() string {
	uptime := i.Uptime
	if uptime == "" || i.Status == health.StatusStopped || i.Status == health.StatusMissing {
		uptime = string(i.Status)
	}
	desc := fmt.Sprintf("%s %s | %s", statusIcon(i.Status), truncate(i.Record.ContainerImageRef, 40), uptime)
	if i.Record.GPUSpec != "" {
		desc += " | gpus " + i.Record.GPUSpec
	}
	return desc
}

func (i allocationItem) FilterValue() string {
	return i.Record.Username
}

func statusIcon(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return "✓"
	case health.StatusUnhealthy:
		return "⚠"
	case health.StatusMissing:
		return "✗"
	default:
		return "●"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// Model is the bubbletea model for the allocation picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
}

// NewPicker creates a new allocation picker
func NewPicker(items []Item) Model {
	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = allocationItem{it}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	l := list.New(listItems, delegate, 80, 20)
	l.Title = "guest-ctl - Allocations"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) choose(action Action) (tea.Model, tea.Cmd) {
	item, ok := m.list.SelectedItem().(allocationItem)
	if !ok {
		return m, nil
	}
	selected := item.Item
	m.result = PickerResult{Action: action, Item: &selected}
	m.quitting = true
	return m, tea.Quit
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter":
			return m.choose(ActionConnect)
		case "s":
			return m.choose(ActionToggle)
		case "d":
			return m.choose(ActionDown)
		case "q", "esc":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[enter] Connect  [s] Start/Stop  [d] Down  [/] Filter  [q] Quit")

	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive allocation picker
func RunPicker(items []Item) (PickerResult, error) {
	if len(items) == 0 {
		return PickerResult{Action: ActionQuit}, nil
	}

	p := tea.NewProgram(NewPicker(items), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker is a non-interactive listing for terminals without a TTY
func SimplePicker(items []Item) string {
	var sb strings.Builder

	sb.WriteString("guest-ctl - Allocations\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(items) == 0 {
		sb.WriteString("No allocations found.\n")
		sb.WriteString("Create one with: guest-ctl up <username> --public-key-file <key.pub>\n")
		return sb.String()
	}

	for i, it := range items {
		sb.WriteString(fmt.Sprintf("%d. %s %s (%s)\n",
			i+1, statusIcon(it.Status), it.Record.Username, it.Status))
		sb.WriteString(fmt.Sprintf("   Port: %d | Image: %s\n\n",
			it.Record.Port, truncate(it.Record.ContainerImageRef, 40)))
	}

	return sb.String()
}
