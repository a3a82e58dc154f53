package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/shiush/internal/models"
	"github.com/tgienger/shiush/internal/ui/keys"
	"github.com/tgienger/shiush/internal/ui/styles"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// Board is the task store the view edits. *tasks.Engine implements it.
type Board interface {
	Tasks(bucket models.Bucket) []models.Task
	Snapshot() *models.Store
	AddTask(bucket models.Bucket, text string, priority models.Priority) error
	ToggleTaskCompletion(bucket models.Bucket, taskID string) error
	DeleteTask(bucket models.Bucket, taskID string) error
	AddSubtask(taskID, text string) error
	ToggleSubtaskCompletion(taskID, subtaskID string) error
	DeleteSubtask(taskID, subtaskID string) error
}

// FocusArea is the part of the list receiving keys
type FocusArea int

const (
	FocusTasks FocusArea = iota
	FocusSubtasks
)

// StoreChanged tells the view the store was modified elsewhere
type StoreChanged struct {
	Bucket models.Bucket
}

type tasksLoadedMsg struct {
	bucket models.Bucket
	tasks  []models.Task
	open   map[models.Bucket]int
}

// TaskListView shows one bucket with a tab bar for the others
type TaskListView struct {
	board  Board
	bucket models.Bucket
	tasks  []models.Task
	open   map[models.Bucket]int
	styles *styles.Styles
	keys   keys.KeyMap
	help   help.Model

	width  int
	height int

	focus     FocusArea
	cursor    int
	subCursor int
	scrollY   int

	// Task and subtask creation
	adding        bool
	addingSubtask bool
	input         textinput.Model
	priority      models.Priority

	// Delete confirmation
	confirmingDelete bool
	deleteTaskID     string
	deleteSubtaskID  string
	deleteTargetName string

	showHelpPopup bool
	err           error
}

// NewTaskListView creates a view opened on bucket
func NewTaskListView(board Board, bucket models.Bucket) *TaskListView {
	if !bucket.Valid() {
		bucket = models.BucketToday
	}

	input := textinput.New()
	input.CharLimit = 200

	return &TaskListView{
		board:    board,
		bucket:   bucket,
		open:     make(map[models.Bucket]int),
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		help:     help.New(),
		input:    input,
		priority: models.PriorityMain,
	}
}

// Bucket returns the bucket on screen
func (v *TaskListView) Bucket() models.Bucket { return v.bucket }

// Init loads the opening bucket
func (v *TaskListView) Init() tea.Cmd {
	return v.load(v.bucket)
}

func (v *TaskListView) load(bucket models.Bucket) tea.Cmd {
	board := v.board
	return func() tea.Msg {
		snap := board.Snapshot()
		open := make(map[models.Bucket]int, len(models.Buckets))
		for _, b := range models.Buckets {
			for _, t := range *snap.Bucket(b) {
				if !t.Completed {
					open[b]++
				}
			}
		}
		return tasksLoadedMsg{bucket: bucket, tasks: board.Tasks(bucket), open: open}
	}
}

// apply reloads after a mutation, or shows its error
func (v *TaskListView) apply(err error) tea.Cmd {
	if err != nil {
		v.err = err
		return nil
	}
	return v.load(v.bucket)
}

func (v *TaskListView) selected() *models.Task {
	if v.cursor < 0 || v.cursor >= len(v.tasks) {
		return nil
	}
	return &v.tasks[v.cursor]
}

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.help.Width = contentWidth
		v.input.Width = clamp(contentWidth-10, 10, 60)
		return v, nil

	case tasksLoadedMsg:
		v.open = msg.open
		if msg.bucket != v.bucket {
			return v, nil
		}
		// Keep the cursor on the same task when sorting moves it
		prev := ""
		if t := v.selected(); t != nil {
			prev = t.ID
		}
		v.tasks = msg.tasks
		for i, t := range v.tasks {
			if t.ID == prev {
				v.cursor = i
				break
			}
		}
		v.clampCursor()
		return v, nil

	case StoreChanged:
		return v, v.load(v.bucket)

	case tea.KeyMsg:
		// Any key closes the help popup
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}

		if v.adding {
			return v.updateAdding(msg)
		}

		if v.focus == FocusSubtasks {
			return v.updateSubtasks(msg)
		}

		return v.updateNormal(msg)
	}

	if v.adding {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *TaskListView) clampCursor() {
	v.cursor = clamp(v.cursor, 0, max(len(v.tasks)-1, 0))
	t := v.selected()
	if t == nil || len(t.Subtasks) == 0 {
		v.focus = FocusTasks
		v.subCursor = 0
		return
	}
	v.subCursor = clamp(v.subCursor, 0, len(t.Subtasks)-1)
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v.err = nil

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
		}

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.tasks)-1 {
			v.cursor++
		}

	case key.Matches(msg, v.keys.NextTab):
		return v, v.switchBucket(shiftBucket(v.bucket, 1))

	case key.Matches(msg, v.keys.PrevTab):
		return v, v.switchBucket(shiftBucket(v.bucket, -1))

	case key.Matches(msg, v.keys.Bucket):
		i := int(msg.String()[0] - '1')
		if i >= 0 && i < len(models.Buckets) {
			return v, v.switchBucket(models.Buckets[i])
		}

	case key.Matches(msg, v.keys.New):
		return v, v.startAdding(false)

	case key.Matches(msg, v.keys.Toggle):
		if t := v.selected(); t != nil {
			return v, v.apply(v.board.ToggleTaskCompletion(v.bucket, t.ID))
		}

	case key.Matches(msg, v.keys.Delete):
		if t := v.selected(); t != nil {
			v.confirmDelete(t.ID, "", t.Text)
		}

	case key.Matches(msg, v.keys.Subtask):
		if v.selected() != nil {
			return v, v.startAdding(true)
		}

	case key.Matches(msg, v.keys.Enter):
		if t := v.selected(); t != nil && len(t.Subtasks) > 0 {
			v.focus = FocusSubtasks
			v.subCursor = 0
		}
	}

	return v, nil
}

func (v *TaskListView) updateSubtasks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v.err = nil

	t := v.selected()
	if t == nil || len(t.Subtasks) == 0 {
		v.focus = FocusTasks
		return v.updateNormal(msg)
	}

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		v.focus = FocusTasks

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true

	case key.Matches(msg, v.keys.Up):
		if v.subCursor > 0 {
			v.subCursor--
		}

	case key.Matches(msg, v.keys.Down):
		if v.subCursor < len(t.Subtasks)-1 {
			v.subCursor++
		}

	case key.Matches(msg, v.keys.Toggle):
		return v, v.apply(v.board.ToggleSubtaskCompletion(t.ID, t.Subtasks[v.subCursor].ID))

	case key.Matches(msg, v.keys.Delete):
		st := t.Subtasks[v.subCursor]
		v.confirmDelete(t.ID, st.ID, st.Text)

	case key.Matches(msg, v.keys.Subtask):
		return v, v.startAdding(true)
	}

	return v, nil
}

func (v *TaskListView) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.stopAdding()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		text := v.input.Value()
		sub := v.addingSubtask
		v.stopAdding()
		if sub {
			t := v.selected()
			if t == nil {
				return v, nil
			}
			return v, v.apply(v.board.AddSubtask(t.ID, text))
		}
		return v, v.apply(v.board.AddTask(v.bucket, text, v.priority))

	case !v.addingSubtask && key.Matches(msg, v.keys.Priority):
		v.priority = nextPriority(v.priority)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Confirm):
		v.confirmingDelete = false
		if v.deleteSubtaskID != "" {
			return v, v.apply(v.board.DeleteSubtask(v.deleteTaskID, v.deleteSubtaskID))
		}
		return v, v.apply(v.board.DeleteTask(v.bucket, v.deleteTaskID))

	case key.Matches(msg, v.keys.Cancel):
		v.confirmingDelete = false
	}
	return v, nil
}

func (v *TaskListView) confirmDelete(taskID, subtaskID, name string) {
	v.confirmingDelete = true
	v.deleteTaskID = taskID
	v.deleteSubtaskID = subtaskID
	v.deleteTargetName = name
}

func (v *TaskListView) switchBucket(b models.Bucket) tea.Cmd {
	if b == v.bucket {
		return nil
	}
	v.bucket = b
	v.tasks = nil
	v.cursor = 0
	v.subCursor = 0
	v.scrollY = 0
	v.focus = FocusTasks
	return v.load(b)
}

func (v *TaskListView) startAdding(subtask bool) tea.Cmd {
	v.adding = true
	v.addingSubtask = subtask
	v.priority = models.PriorityMain
	v.input.Reset()
	if subtask {
		v.input.Placeholder = "Subtask"
	} else {
		v.input.Placeholder = "What needs doing?"
	}
	v.input.Focus()
	return textinput.Blink
}

func (v *TaskListView) stopAdding() {
	v.adding = false
	v.input.Blur()
	v.input.Reset()
}

func nextPriority(p models.Priority) models.Priority {
	for i, candidate := range models.Priorities {
		if candidate == p {
			return models.Priorities[(i+1)%len(models.Priorities)]
		}
	}
	return models.PriorityMain
}

// View renders the board
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}

	var b strings.Builder

	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(v.renderTaskList())

	if v.adding {
		b.WriteString("\n\n")
		b.WriteString(v.renderInput())
	}

	if v.err != nil {
		b.WriteString("\n")
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	}

	b.WriteString("\n")
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) renderHeader() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	title := s.Title.Render("shiush") + " " + s.TitleMuted.Render(v.bucket.Title())
	return lipgloss.JoinVertical(lipgloss.Left, title, renderTabs(s, v.bucket, v.open, contentWidth))
}

func (v *TaskListView) renderTaskList() string {
	s := v.styles

	if len(v.tasks) == 0 {
		return s.TitleMuted.Render(fmt.Sprintf("Nothing in %s. Press 'n' to add a task.", v.bucket.Title()))
	}

	width := max(styles.ContentWidth(v.width)-4, 20)

	var lines []string
	focusLine := 0
	for i, t := range v.tasks {
		selected := i == v.cursor
		if selected {
			focusLine = len(lines)
			if v.focus == FocusSubtasks {
				focusLine += 1 + v.subCursor
			}
		}
		lines = append(lines, v.renderTaskItem(t, selected && v.focus == FocusTasks, width))
		for j, st := range t.Subtasks {
			lines = append(lines, v.renderSubtaskItem(st, selected && v.focus == FocusSubtasks && j == v.subCursor, width))
		}
	}

	// Header, input and help take roughly a dozen lines
	visible := len(lines)
	if v.height > 0 {
		visible = max(v.height-12, 3)
	}
	if focusLine < v.scrollY {
		v.scrollY = focusLine
	}
	if focusLine >= v.scrollY+visible {
		v.scrollY = focusLine - visible + 1
	}
	v.scrollY = clamp(v.scrollY, 0, max(len(lines)-visible, 0))

	end := min(v.scrollY+visible, len(lines))
	return lipgloss.JoinVertical(lipgloss.Left, lines[v.scrollY:end]...)
}

func (v *TaskListView) renderTaskItem(t models.Task, selected bool, width int) string {
	s := v.styles

	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	badge := s.Priority(t.Priority).Render(fmt.Sprintf("%-5s", t.Priority))

	text := t.Text
	if t.Completed && !selected {
		text = s.Done.Render(text)
	}

	line := check + " " + badge + " " + text
	if n := len(t.Subtasks); n > 0 {
		done := 0
		for _, st := range t.Subtasks {
			if st.Completed {
				done++
			}
		}
		line += " " + s.TitleMuted.Render(fmt.Sprintf("(%d/%d)", done, n))
	}
	if v.bucket == models.BucketDue && t.SourceSection != "" {
		line += "  " + s.Origin.Render("from "+t.SourceSection.Title())
	}

	style := s.ListItem
	if selected {
		style = s.ListSelected
	}
	return style.Width(width).Render(line)
}

func (v *TaskListView) renderSubtaskItem(st models.Subtask, selected bool, width int) string {
	s := v.styles

	check := "[ ]"
	text := st.Text
	if st.Completed {
		check = "[x]"
		if !selected {
			text = s.Done.Render(text)
		}
	}

	style := s.Subtask
	if selected {
		style = s.ListSelected.PaddingLeft(6)
	}
	return style.Width(width).Render("└ " + check + " " + text)
}

func (v *TaskListView) renderInput() string {
	s := v.styles

	label := s.Title.Render("New subtask")
	hint := "↵ save • esc cancel"
	if !v.addingSubtask {
		label = s.Title.Render("New task") + " " + s.Priority(v.priority).Render("["+string(v.priority)+"]")
		hint = "↵ save • ctrl+p priority • esc cancel"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		label,
		s.InputFocused.Render(v.input.View()),
		s.TitleMuted.Render(hint),
	)
}

func (v *TaskListView) renderHelp() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}

	if v.focus == FocusSubtasks {
		return s.Help.Render(v.help.ShortHelpView([]key.Binding{
			v.keys.Up, v.keys.Down, v.keys.Toggle, v.keys.Delete, v.keys.Subtask, v.keys.Back,
		}))
	}
	return s.Help.Render(v.help.View(v.keys))
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Keyboard Shortcuts"),
		"",
		v.help.FullHelpView(v.keys.FullHelp()),
		"",
		s.TitleMuted.Render("Press any key to close"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.Popup.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	title := "Delete Task?"
	if v.deleteSubtaskID != "" {
		title = "Delete Subtask?"
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render(title),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q", v.deleteTargetName)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}
