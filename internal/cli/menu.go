package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type menuMode int

const (
	menuModeBrowse menuMode = iota
	menuModeForm
	menuModeBusy
)

type menuAction int

const (
	actionProject menuAction = iota
	actionFiles
	actionPrompt
	actionStoryboard
	actionVoiceover
	actionSequence
	actionRender
	actionExit
)

type menuItem struct {
	Action menuAction
	Label  string
	Help   string
}

var menuItems = []menuItem{
	{actionProject, "Create or select project", "Create a new project or pick an existing one by id."},
	{actionFiles, "Manage project files", "Attach or detach an uploaded file."},
	{actionPrompt, "Create prompt", "Write the creative brief for the project."},
	{actionStoryboard, "Generate storyboard", "Start a storyboard job and wait for it."},
	{actionVoiceover, "Generate voiceover", "Narrate the storyboard and wait for it."},
	{actionSequence, "Generate sequence", "Assemble the media sequence and wait for it."},
	{actionRender, "Render", "Render the final video and print its links."},
	{actionExit, "Exit", ""},
}

type fieldKind int

const (
	fieldString fieldKind = iota
	fieldSelect
)

type formField struct {
	Key      string
	Label    string
	Kind     fieldKind
	Value    string
	Options  []string
	Required bool
}

type menuForm struct {
	Action menuAction
	Title  string
	Fields []formField
	Index  int
	Input  textinput.Model
	Error  string
}

// actionResult is what a finished action reports back to the menu.
type actionResult struct {
	ProjectID   string
	ProjectName string
	Message     string
}

// actionFunc performs one menu action against the platform.
type actionFunc func(ctx context.Context, projectID string, values map[string]string) (actionResult, error)

type actionDoneMsg struct {
	action menuAction
	result actionResult
	err    error
}

type menuModel struct {
	actions     map[menuAction]actionFunc
	ctx         context.Context
	projectID   string
	projectName string
	cursor      int
	width       int
	mode        menuMode
	form        *menuForm
	status      string
	statusErr   bool
	fatalErr    error
}

var (
	menuTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	menuMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	menuErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	menuOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	menuPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	menuSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func runMenu(args []string) error {
	fs := flag.NewFlagSet("menu", flag.ContinueOnError)
	project := fs.String("project", "", "start with this project selected")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("the menu requires an interactive terminal (TTY)")
	}

	e, err := loadEnv(false)
	if err != nil {
		return err
	}
	c, err := e.client()
	if err != nil {
		return err
	}

	poll := e.cfg.PollOptions()
	poll.Logger = e.log
	m := newMenuModel(context.Background(), clientActions(c, poll))
	m.projectID = strings.TrimSpace(*project)

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := finalModel.(menuModel); ok {
		return fm.fatalErr
	}
	return nil
}

func newMenuModel(ctx context.Context, actions map[menuAction]actionFunc) menuModel {
	return menuModel{actions: actions, ctx: ctx, mode: menuModeBrowse}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case actionDoneMsg:
		m.mode = menuModeBrowse
		m.form = nil
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		if msg.result.ProjectID != "" {
			m.projectID = msg.result.ProjectID
			m.projectName = msg.result.ProjectName
		}
		m.status = msg.result.Message
		m.statusErr = false
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case menuModeBrowse:
		return m.updateBrowse(keyMsg)
	case menuModeForm:
		return m.updateForm(keyMsg)
	default:
		if keyMsg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}
}

func (m menuModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(menuItems)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		item := menuItems[m.cursor]
		if item.Action == actionExit {
			return m, tea.Quit
		}
		if item.Action != actionProject && m.projectID == "" {
			m.status = "select a project first"
			m.statusErr = true
			return m, nil
		}
		m.form = newMenuForm(item.Action, m.width)
		m.status = ""
		if len(m.form.Fields) == 0 {
			return m.submit()
		}
		m.mode = menuModeForm
		return m, nil
	}
	return m, nil
}

func (m menuModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = menuModeBrowse
		return m, nil
	}

	key := msg.String()
	switch key {
	case "ctrl+c", "esc":
		m.mode = menuModeBrowse
		m.form = nil
		m.status = "cancelled"
		m.statusErr = false
		return m, nil
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "left", "right", " ":
		if m.form.currentField().Kind == fieldSelect {
			step := 1
			if key == "left" {
				step = -1
			}
			m.form.cycleOption(step)
			return m, nil
		}
	case "enter":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		if err := m.form.validate(); err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		return m.submit()
	}

	if m.form.currentField().Kind == fieldSelect {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m menuModel) submit() (tea.Model, tea.Cmd) {
	action := m.form.Action
	fn, ok := m.actions[action]
	if !ok {
		m.mode = menuModeBrowse
		m.form = nil
		m.status = "action not available"
		m.statusErr = true
		return m, nil
	}
	values := m.form.values()
	m.mode = menuModeBusy
	m.form.Error = ""
	m.status = "working: " + menuItems[action].Label + "..."
	m.statusErr = false
	ctx, projectID := m.ctx, m.projectID
	return m, func() tea.Msg {
		res, err := fn(ctx, projectID, values)
		return actionDoneMsg{action: action, result: res, err: err}
	}
}

func (m menuModel) View() string {
	if m.fatalErr != nil {
		return menuErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	width := m.width
	if width <= 0 {
		width = 80
	}

	project := menuMutedStyle.Render("no project selected")
	if m.projectID != "" {
		project = "project: " + m.projectID
		if m.projectName != "" {
			project += " (" + m.projectName + ")"
		}
	}
	header := menuTitleStyle.Render("storylinez") + "  " + project

	var body string
	switch m.mode {
	case menuModeForm:
		body = m.viewForm(width)
	default:
		body = m.viewBrowse(width)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.viewStatus())
}

func (m menuModel) viewBrowse(width int) string {
	lines := make([]string, 0, len(menuItems)+2)
	for i, item := range menuItems {
		line := "  " + item.Label
		if i == m.cursor {
			line = menuSelStyle.Render("> " + item.Label)
		}
		lines = append(lines, line)
	}
	if help := menuItems[m.cursor].Help; help != "" {
		lines = append(lines, "", menuMutedStyle.Render(help))
	}
	lines = append(lines, menuMutedStyle.Render("up/down: move | enter: select | q: quit"))
	return menuPanelStyle.Width(maxInt(width-2, 20)).Render(strings.Join(lines, "\n"))
}

func (m menuModel) viewForm(width int) string {
	f := m.form
	lines := []string{menuTitleStyle.Render(f.Title), ""}
	for i, field := range f.Fields {
		label := field.Label
		if field.Required {
			label += " *"
		}
		value := field.Value
		if i == f.Index && field.Kind == fieldString {
			value = f.Input.View()
		} else if field.Kind == fieldSelect {
			value = "< " + value + " >"
		}
		line := fmt.Sprintf("%-22s %s", label, value)
		if i == f.Index {
			line = menuSelStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if f.Error != "" {
		lines = append(lines, "", menuErrorStyle.Render(f.Error))
	}
	lines = append(lines, "", menuMutedStyle.Render("tab/enter: next | left/right: change option | enter on last field: submit | esc: cancel"))
	return menuPanelStyle.Width(maxInt(width-2, 20)).Render(strings.Join(lines, "\n"))
}

func (m menuModel) viewStatus() string {
	switch {
	case m.status == "":
		return ""
	case m.statusErr:
		return menuErrorStyle.Render(m.status)
	case m.mode == menuModeBusy:
		return menuMutedStyle.Render(m.status)
	default:
		return menuOKStyle.Render(m.status)
	}
}

func newMenuForm(action menuAction, width int) *menuForm {
	f := &menuForm{Action: action, Title: menuItems[action].Label}
	switch action {
	case actionProject:
		f.Fields = []formField{
			{Key: "project_id", Label: "Existing project id"},
			{Key: "name", Label: "Name"},
			{Key: "orientation", Label: "Orientation", Kind: fieldSelect, Options: []string{"landscape", "portrait"}},
			{Key: "purpose", Label: "Purpose"},
			{Key: "target_audience", Label: "Target audience"},
		}
	case actionFiles:
		f.Fields = []formField{
			{Key: "operation", Label: "Operation", Kind: fieldSelect, Options: []string{"add", "remove"}},
			{Key: "file_id", Label: "File id", Required: true},
		}
	case actionPrompt:
		f.Fields = []formField{
			{Key: "main_prompt", Label: "Prompt", Required: true},
			{Key: "document_context", Label: "Document context"},
			{Key: "total_length", Label: "Length (10-60 s)"},
			{Key: "temperature", Label: "Temperature (0-1)"},
		}
	case actionStoryboard:
		f.Fields = []formField{
			{Key: "temperature", Label: "Temperature (0-1)"},
			{Key: "voiceover", Label: "Voiceover", Kind: fieldSelect, Options: []string{"yes", "no"}},
		}
	case actionVoiceover:
		f.Fields = []formField{
			{Key: "voiceover_code", Label: "Voice code"},
		}
	case actionSequence:
		f.Fields = []formField{
			{Key: "grade_type", Label: "Grade type", Kind: fieldSelect, Options: []string{"single", "multiple"}},
			{Key: "apply_template", Label: "Apply template", Kind: fieldSelect, Options: []string{"no", "yes"}},
		}
	case actionRender:
		f.Fields = []formField{
			{Key: "subtitles", Label: "Subtitles", Kind: fieldSelect, Options: []string{"no", "yes"}},
		}
	}
	for i := range f.Fields {
		if f.Fields[i].Kind == fieldSelect {
			f.Fields[i].Value = f.Fields[i].Options[0]
		}
	}

	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 2000
	in.Width = maxInt(width-30, 20)
	f.Input = in
	f.loadFieldIntoInput()
	return f
}

func (f *menuForm) currentField() formField {
	if f.Index < 0 || f.Index >= len(f.Fields) {
		return formField{}
	}
	return f.Fields[f.Index]
}

func (f *menuForm) commitInput() {
	if f.currentField().Kind == fieldString && f.Index < len(f.Fields) {
		f.Fields[f.Index].Value = strings.TrimSpace(f.Input.Value())
	}
}

func (f *menuForm) loadFieldIntoInput() {
	field := f.currentField()
	if field.Kind != fieldString {
		f.Input.Blur()
		return
	}
	f.Input.SetValue(field.Value)
	f.Input.CursorEnd()
	f.Input.Focus()
}

func (f *menuForm) cycleOption(step int) {
	field := &f.Fields[f.Index]
	n := len(field.Options)
	if n == 0 {
		return
	}
	idx := 0
	for i, o := range field.Options {
		if o == field.Value {
			idx = i
			break
		}
	}
	field.Value = field.Options[((idx+step)%n+n)%n]
}

func (f *menuForm) validate() error {
	for _, field := range f.Fields {
		if field.Required && strings.TrimSpace(field.Value) == "" {
			return fmt.Errorf("%s is required", strings.ToLower(field.Label))
		}
	}
	if f.Action == actionProject {
		v := f.values()
		if v["project_id"] == "" && v["name"] == "" {
			return errors.New("enter an existing project id or a name for a new project")
		}
	}
	return nil
}

func (f *menuForm) values() map[string]string {
	out := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		out[field.Key] = strings.TrimSpace(field.Value)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
