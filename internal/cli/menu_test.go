package cli

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	projectID string
	values    map[string]string
}

func recordingActions(calls *[]recordedCall, res actionResult, err error) map[menuAction]actionFunc {
	fn := func(_ context.Context, projectID string, values map[string]string) (actionResult, error) {
		*calls = append(*calls, recordedCall{projectID: projectID, values: values})
		return res, err
	}
	actions := map[menuAction]actionFunc{}
	for _, item := range menuItems {
		actions[item.Action] = fn
	}
	return actions
}

func press(t *testing.T, m menuModel, keys ...tea.KeyMsg) (menuModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var model tea.Model
		model, cmd = m.Update(k)
		m = model.(menuModel)
	}
	return m, cmd
}

func typeText(t *testing.T, m menuModel, s string) menuModel {
	t.Helper()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestMenu_RequiresProjectFirst(t *testing.T) {
	var calls []recordedCall
	m := newMenuModel(context.Background(), recordingActions(&calls, actionResult{}, nil))

	m, cmd := press(t, m, keyDown, keyDown, keyEnter) // prompt
	assert.Nil(t, cmd)
	assert.Equal(t, menuModeBrowse, m.mode)
	assert.True(t, m.statusErr)
	assert.Equal(t, "select a project first", m.status)
	assert.Empty(t, calls)
}

func TestMenu_CreateProject(t *testing.T) {
	var calls []recordedCall
	actions := recordingActions(&calls, actionResult{ProjectID: "p-42", ProjectName: "launch", Message: "created project p-42"}, nil)
	m := newMenuModel(context.Background(), actions)

	m, _ = press(t, m, keyEnter)
	require.Equal(t, menuModeForm, m.mode)
	require.Equal(t, actionProject, m.form.Action)

	m, _ = press(t, m, keyEnter) // skip existing id
	m = typeText(t, m, "launch")
	m, _ = press(t, m, keyEnter, keyRight) // orientation -> portrait
	assert.Equal(t, "portrait", m.form.currentField().Value)
	m, _ = press(t, m, keyEnter)
	m = typeText(t, m, "awareness")
	m, cmd := press(t, m, keyEnter, keyEnter)

	require.NotNil(t, cmd)
	assert.Equal(t, menuModeBusy, m.mode)

	model, _ := m.Update(cmd())
	m = model.(menuModel)

	require.Len(t, calls, 1)
	assert.Equal(t, "launch", calls[0].values["name"])
	assert.Equal(t, "portrait", calls[0].values["orientation"])
	assert.Equal(t, "awareness", calls[0].values["purpose"])
	assert.Equal(t, "p-42", m.projectID)
	assert.Equal(t, "launch", m.projectName)
	assert.Equal(t, menuModeBrowse, m.mode)
	assert.False(t, m.statusErr)
	assert.Contains(t, m.View(), "p-42")
}

func TestMenu_ProjectFormNeedsIDOrName(t *testing.T) {
	var calls []recordedCall
	m := newMenuModel(context.Background(), recordingActions(&calls, actionResult{}, nil))

	m, _ = press(t, m, keyEnter)
	m, cmd := press(t, m, keyEnter, keyEnter, keyEnter, keyEnter, keyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, menuModeForm, m.mode)
	assert.NotEmpty(t, m.form.Error)
	assert.Empty(t, calls)
}

func TestMenu_RequiredField(t *testing.T) {
	var calls []recordedCall
	m := newMenuModel(context.Background(), recordingActions(&calls, actionResult{}, nil))
	m.projectID = "p-1"

	m, _ = press(t, m, keyDown, keyEnter) // files
	m, cmd := press(t, m, keyEnter, keyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, "file id is required", m.form.Error)

	m = typeText(t, m, "file-9")
	m, cmd = press(t, m, keyEnter)
	require.NotNil(t, cmd)
	cmd()
	require.Len(t, calls, 1)
	assert.Equal(t, "p-1", calls[0].projectID)
	assert.Equal(t, "add", calls[0].values["operation"])
	assert.Equal(t, "file-9", calls[0].values["file_id"])
}

func TestMenu_ActionErrorShownInStatus(t *testing.T) {
	var calls []recordedCall
	m := newMenuModel(context.Background(), recordingActions(&calls, actionResult{}, errors.New("storyboard job failed")))
	m.projectID = "p-1"

	m, _ = press(t, m, keyDown, keyDown, keyDown, keyEnter) // storyboard
	m, cmd := press(t, m, keyEnter, keyEnter)
	require.NotNil(t, cmd)

	model, _ := m.Update(cmd())
	m = model.(menuModel)
	assert.True(t, m.statusErr)
	assert.Equal(t, "error: storyboard job failed", m.status)
	assert.Equal(t, "p-1", m.projectID)
}

func TestMenu_EscCancelsForm(t *testing.T) {
	m := newMenuModel(context.Background(), nil)
	m, _ = press(t, m, keyEnter, keyEsc)
	assert.Equal(t, menuModeBrowse, m.mode)
	assert.Nil(t, m.form)
	assert.Equal(t, "cancelled", m.status)
}

func TestMenu_ExitQuits(t *testing.T) {
	m := newMenuModel(context.Background(), nil)
	for range menuItems {
		m, _ = press(t, m, keyDown)
	}
	assert.Equal(t, len(menuItems)-1, m.cursor)

	_, cmd := press(t, m, keyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestOptionalNumbers(t *testing.T) {
	n, err := optionalInt("length", "")
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = optionalInt("length", "30")
	require.NoError(t, err)
	assert.Equal(t, 30, *n)

	_, err = optionalFloat("temperature", "warm")
	assert.EqualError(t, err, "temperature must be a number")
}
