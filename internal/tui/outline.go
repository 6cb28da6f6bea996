// Package tui provides the interactive outline review screen.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lamim/paperforge/pkg/models"
)

// OutlineEditor is the set of outline operations the review screen needs
type OutlineEditor interface {
	Sections() []models.Section
	AddSection(title, description string) (models.Section, error)
	UpdateSection(id, title, description string) error
	DeleteSection(id string) error
	MoveSection(id string, newIndex int) error
}

// OutlineState is the current mode of the review screen
type OutlineState int

const (
	StateBrowse OutlineState = iota
	StateEditTitle
	StateEditDescription
	StateConfirmDelete
)

// OutlineResult is how the user left the review screen
type OutlineResult int

const (
	ResultPending OutlineResult = iota
	// ResultStart means the user accepted the outline and wants to start writing
	ResultStart
	// ResultQuit means the user left without starting
	ResultQuit
)

// OutlineModel is the bubbletea model for reviewing and editing an outline
type OutlineModel struct {
	editor OutlineEditor
	title  string

	sections []models.Section
	cursor   int
	state    OutlineState
	result   OutlineResult
	editID   string
	err      error

	input textinput.Model
	desc  textarea.Model

	width  int
	height int
}

// NewOutlineModel creates a review screen for the paper titled title
func NewOutlineModel(editor OutlineEditor, title string) OutlineModel {
	ti := textinput.New()
	ti.Placeholder = "Section title"
	ti.CharLimit = 200
	ti.Width = 60

	ta := textarea.New()
	ta.Placeholder = "What this section should cover..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4096
	ta.SetWidth(72)
	ta.SetHeight(6)

	return OutlineModel{
		editor:   editor,
		title:    title,
		sections: editor.Sections(),
		input:    ti,
		desc:     ta,
	}
}

// Result reports how the user left the screen
func (m OutlineModel) Result() OutlineResult {
	return m.result
}

// State returns the current mode
func (m OutlineModel) State() OutlineState {
	return m.state
}

// Cursor returns the index of the highlighted section
func (m OutlineModel) Cursor() int {
	return m.cursor
}

// Init implements tea.Model
func (m OutlineModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m OutlineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Width > 8 {
			m.desc.SetWidth(min(msg.Width-6, 100))
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.result = ResultQuit
			return m, tea.Quit
		}
		switch m.state {
		case StateBrowse:
			return m.handleBrowseKeys(msg)
		case StateEditTitle:
			return m.handleTitleKeys(msg)
		case StateEditDescription:
			return m.handleDescriptionKeys(msg)
		case StateConfirmDelete:
			return m.handleDeleteKeys(msg)
		}
	}

	return m, nil
}

func (m OutlineModel) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.sections)-1 {
			m.cursor++
		}
	case "shift+up", "K":
		m.move(-1)
	case "shift+down", "J":
		m.move(1)
	case "a":
		sec, err := m.editor.AddSection("", "")
		if err != nil {
			m.err = err
			return m, nil
		}
		m.refresh()
		m.cursor = len(m.sections) - 1
		return m.startEdit(sec)
	case "e", "enter":
		if sec, ok := m.current(); ok {
			return m.startEdit(sec)
		}
	case "d", "delete":
		if _, ok := m.current(); ok {
			m.state = StateConfirmDelete
		}
	case "w", "ctrl+s":
		if len(m.sections) == 0 {
			m.err = fmt.Errorf("add at least one section before writing")
			return m, nil
		}
		m.result = ResultStart
		return m, tea.Quit
	case "q", "esc":
		m.result = ResultQuit
		return m, tea.Quit
	}
	return m, nil
}

func (m OutlineModel) handleTitleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "tab":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.err = fmt.Errorf("title cannot be empty")
			return m, nil
		}
		m.err = nil
		m.input.Blur()
		m.state = StateEditDescription
		return m, m.desc.Focus()
	case "esc":
		return m.cancelEdit(), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m OutlineModel) handleDescriptionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		desc := strings.TrimSpace(m.desc.Value())
		if desc == "" {
			m.err = fmt.Errorf("description cannot be empty")
			return m, nil
		}
		if err := m.editor.UpdateSection(m.editID, strings.TrimSpace(m.input.Value()), desc); err != nil {
			m.err = err
		}
		m.desc.Blur()
		m.state = StateBrowse
		m.refresh()
		return m, nil
	case "shift+tab":
		m.desc.Blur()
		m.state = StateEditTitle
		return m, m.input.Focus()
	case "esc":
		return m.cancelEdit(), nil
	}

	var cmd tea.Cmd
	m.desc, cmd = m.desc.Update(msg)
	return m, cmd
}

func (m OutlineModel) handleDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if sec, ok := m.current(); ok {
			if err := m.editor.DeleteSection(sec.ID); err != nil {
				m.err = err
			}
		}
		m.refresh()
		m.state = StateBrowse
	case "n", "N", "esc":
		m.state = StateBrowse
	}
	return m, nil
}

func (m OutlineModel) startEdit(sec models.Section) (tea.Model, tea.Cmd) {
	m.editID = sec.ID
	m.input.SetValue(sec.Title)
	m.desc.SetValue(sec.Description)
	m.state = StateEditTitle
	return m, m.input.Focus()
}

func (m OutlineModel) cancelEdit() OutlineModel {
	m.input.Blur()
	m.desc.Blur()
	m.err = nil
	m.state = StateBrowse
	return m
}

func (m *OutlineModel) move(delta int) {
	sec, ok := m.current()
	if !ok {
		return
	}
	target := m.cursor + delta
	if target < 0 || target >= len(m.sections) {
		return
	}
	if err := m.editor.MoveSection(sec.ID, target); err != nil {
		m.err = err
		return
	}
	m.refresh()
	m.cursor = target
}

func (m *OutlineModel) refresh() {
	m.sections = m.editor.Sections()
	if m.cursor >= len(m.sections) {
		m.cursor = max(len(m.sections)-1, 0)
	}
}

func (m OutlineModel) current() (models.Section, bool) {
	if m.cursor < 0 || m.cursor >= len(m.sections) {
		return models.Section{}, false
	}
	return m.sections[m.cursor], true
}

// View implements tea.Model
func (m OutlineModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Outline: " + m.title))
	b.WriteString("\n")

	if len(m.sections) == 0 {
		b.WriteString(SubtleStyle.Render("  No sections yet. Press [a] to add one."))
		b.WriteString("\n")
	}
	for i, sec := range m.sections {
		line := fmt.Sprintf("%2d. %s", i+1, sec.Title)
		if i == m.cursor {
			b.WriteString(SelectedStyle.Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
		if i == m.cursor && m.state == StateBrowse {
			b.WriteString(SubtleStyle.Render(indent(sec.Description, "      ")))
			b.WriteString("\n")
		}
	}

	switch m.state {
	case StateEditTitle, StateEditDescription:
		panel := lipgloss.JoinVertical(lipgloss.Left,
			"Title",
			m.input.View(),
			"",
			"Description",
			m.desc.View(),
		)
		b.WriteString("\n")
		b.WriteString(BoxStyle.Render(panel))
		b.WriteString("\n")
	case StateConfirmDelete:
		if sec, ok := m.current(); ok {
			b.WriteString("\n")
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("Delete %q? [y/n]", sec.Title)))
			b.WriteString("\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render(m.helpLine()))
	return b.String()
}

func (m OutlineModel) helpLine() string {
	switch m.state {
	case StateEditTitle:
		return "Enter Next  Esc Cancel"
	case StateEditDescription:
		return "Ctrl+S Save  Shift+Tab Back to title  Esc Cancel"
	case StateConfirmDelete:
		return "[y] Delete  [n] Keep"
	default:
		return "↑/↓ Move cursor  K/J Reorder  [a] Add  [e] Edit  [d] Delete  [w] Start writing  [q] Quit"
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// RunOutlineEditor shows the review screen until the user starts writing or quits
func RunOutlineEditor(editor OutlineEditor, title string) (OutlineResult, error) {
	p := tea.NewProgram(NewOutlineModel(editor, title), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return ResultQuit, fmt.Errorf("outline editor failed: %w", err)
	}
	m, ok := final.(OutlineModel)
	if !ok {
		return ResultQuit, nil
	}
	return m.Result(), nil
}
