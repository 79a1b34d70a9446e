package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/heartline/pkg/engine"
	"github.com/jwebster45206/heartline/pkg/interpreter"
	"github.com/jwebster45206/heartline/pkg/progression"
	"github.com/jwebster45206/heartline/pkg/relationship"
	"github.com/jwebster45206/heartline/pkg/storage"
)

const (
	NarratorName = "Narrator"
	tickHours    = 1.0
)

type entryKind int

const (
	entryLine entryKind = iota
	entryChoice
	entryNotice
	entryError
)

type transcriptEntry struct {
	kind    entryKind
	speaker string
	text    string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	api           *APIClient
	storyViewport viewport.Model
	metaViewport  viewport.Model
	view          *engine.View
	transcript    []transcriptEntry
	ready         bool
	width         int
	height        int
	busy          bool

	// Quit confirmation state
	showQuitModal bool
}

type stepMsg struct {
	step   *StepResponse
	choice string
	err    error
}

type viewMsg struct {
	view *engine.View
	err  error
}

type tickMsg struct {
	result *progression.TickResult
	err    error
}

type savedMsg struct {
	meta *storage.SaveMeta
	err  error
}

type loadedMsg struct {
	view *engine.View
	err  error
}

type savesMsg struct {
	saves []storage.SaveMeta
	err   error
}

type notificationMsg struct {
	event SSEEvent
}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, api *APIClient, first engine.Step) ConsoleUI {
	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	m := ConsoleUI{
		config:        cfg,
		api:           api,
		storyViewport: storyVp,
		metaViewport:  viewport.New(20, 20),
	}
	m.applyStep(first, "")
	return m
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.refreshView()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.render()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stepMsg:
		m.busy = false
		if msg.err != nil {
			m.addError(msg.err)
		} else {
			m.applyStep(msg.step.Step, msg.choice)
			if msg.step.Warning != "" {
				m.addNotice("Warning: " + msg.step.Warning)
			}
		}
		m.render()
		return m, m.refreshView()

	case tickMsg:
		m.busy = false
		if msg.err != nil {
			m.addError(msg.err)
		} else {
			m.applyTick(*msg.result)
		}
		m.render()
		return m, m.refreshView()

	case viewMsg:
		if msg.err == nil {
			// A tick can start a scene without a step
			if prev := m.currentLine(); lineChanged(prev, msg.view.Line) {
				m.addLine(msg.view.Line)
			}
			m.view = msg.view
		}
		m.render()

	case savedMsg:
		m.busy = false
		if msg.err != nil {
			m.addError(msg.err)
		} else {
			m.addNotice(fmt.Sprintf("Saved to slot %d (day %d, chapter %d).", msg.meta.Slot, msg.meta.Day, msg.meta.Chapter))
		}
		m.render()

	case loadedMsg:
		m.busy = false
		if msg.err != nil {
			m.addError(msg.err)
		} else {
			m.view = msg.view
			m.addNotice("Loaded quick save.")
			m.addLine(msg.view.Line)
		}
		m.render()

	case savesMsg:
		if msg.err != nil {
			m.addError(msg.err)
		} else {
			m.addNotice(formatSaves(msg.saves))
		}
		m.render()

	case notificationMsg:
		if text := formatNotification(msg.event); text != "" {
			m.addNotice(text)
			m.render()
		}
	}

	var vpCmd, mvCmd tea.Cmd
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(vpCmd, mvCmd)
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
		return m, nil
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.storyViewport, cmd = m.storyViewport.Update(msg)
		return m, cmd
	}

	if m.busy {
		return m, nil
	}

	key := msg.String()
	switch key {
	case "enter", " ":
		if m.currentLine().State == interpreter.Presenting {
			m.busy = true
			return m, m.advance()
		}
		if m.currentLine().State != interpreter.AwaitingChoice {
			m.busy = true
			return m, m.tick()
		}
	case "t":
		m.busy = true
		return m, m.tick()
	case "s":
		m.busy = true
		return m, m.quickSave()
	case "l":
		m.busy = true
		return m, m.quickLoad()
	case "v":
		return m, m.listSaves()
	case "c":
		if err := clipboard.WriteAll(plainLine(m.currentLine())); err != nil {
			m.addError(fmt.Errorf("copy failed: %w", err))
		} else {
			m.addNotice("Copied line to clipboard.")
		}
		m.render()
	case "?":
		m.addNotice(helpText)
		m.render()
	case "q":
		m.showQuitModal = true
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 9 {
			line := m.currentLine()
			if line.State == interpreter.AwaitingChoice && n <= len(line.Choices) {
				m.busy = true
				return m, m.choose(n-1, line.Choices[n-1])
			}
		}
	}
	return m, nil
}

const helpText = `Keys:
  Enter/Space  continue (passes time when the scene is over)
  1-9          pick a choice
  t            pass one hour
  s / l        quick save / quick load
  v            list saves
  c            copy the current line
  ↑/↓          scroll
  q / Esc      quit`

func (m ConsoleUI) currentLine() interpreter.Line {
	if m.view != nil {
		return m.view.Line
	}
	return interpreter.Line{}
}

func (m *ConsoleUI) applyStep(step engine.Step, choice string) {
	if choice != "" {
		m.transcript = append(m.transcript, transcriptEntry{kind: entryChoice, text: choice})
	}
	for _, d := range step.Deltas {
		m.addNotice(formatDelta(d))
	}
	for _, ev := range step.Events {
		m.addNotice(formatEvent(ev))
	}
	if step.Started != "" {
		m.addNotice("Scene: " + step.Started)
	}
	m.addLine(step.Line)
	if step.Ending != "" {
		m.addNotice("Ending reached: " + step.Ending)
	}
	if m.view != nil {
		m.view.Line = step.Line
	} else {
		m.view = &engine.View{Line: step.Line}
	}
}

func (m *ConsoleUI) applyTick(result progression.TickResult) {
	for _, ev := range result.Fired {
		m.addNotice(formatEvent(ev))
	}
	for _, ch := range result.ChapterCompleted {
		m.addNotice(fmt.Sprintf("Chapter %d complete.", ch))
	}
	if result.Ending != "" {
		m.addNotice("Ending reached: " + result.Ending)
	}
}

func (m *ConsoleUI) addLine(line interpreter.Line) {
	if line.Text == "" {
		return
	}
	m.transcript = append(m.transcript, transcriptEntry{kind: entryLine, speaker: line.Speaker, text: line.Text})
}

func (m *ConsoleUI) addNotice(text string) {
	m.transcript = append(m.transcript, transcriptEntry{kind: entryNotice, text: text})
}

func (m *ConsoleUI) addError(err error) {
	m.transcript = append(m.transcript, transcriptEntry{kind: entryError, text: "Error: " + err.Error()})
}

func (m *ConsoleUI) resize() {
	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6
	m.storyViewport.Width = storyWidth - 2
	m.storyViewport.Height = m.height - 4
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 2
}

// render rebuilds both panels for the current width.
func (m *ConsoleUI) render() {
	width := m.storyViewport.Width - 3
	if width < 20 {
		width = 20
	}
	m.storyViewport.SetContent(writeTranscript(m.transcript, m.currentLine(), width))
	m.storyViewport.GotoBottom()
	if m.view != nil {
		m.metaViewport.SetContent(writeMetadata(m.view))
	}
}

func writeTranscript(entries []transcriptEntry, line interpreter.Line, width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("HEARTLINE") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range entries {
		switch e.kind {
		case entryLine:
			content.WriteString(formatLine(e.speaker, e.text, width) + "\n\n")
		case entryChoice:
			content.WriteString(choiceStyle.Render("> "+wordwrap.String(e.text, width-2)) + "\n\n")
		case entryNotice:
			content.WriteString(noticeStyle.Render(wordwrap.String(e.text, width)) + "\n\n")
		case entryError:
			content.WriteString(errorStyle.Render(wordwrap.String(e.text, width)) + "\n\n")
		}
	}

	switch line.State {
	case interpreter.AwaitingChoice:
		for i, c := range line.Choices {
			content.WriteString(choiceStyle.Render(fmt.Sprintf("  %d. ", i+1)) + wordwrap.String(c, width-6) + "\n")
		}
		content.WriteString("\n" + promptStyle.Render("Pick a choice (1-9)"))
	case interpreter.Presenting:
		content.WriteString(promptStyle.Render("Enter to continue"))
	default:
		content.WriteString(promptStyle.Render("Enter to pass time, ? for help"))
	}
	return content.String()
}

func formatLine(speaker, text string, width int) string {
	if speaker == "" {
		return narratorStyle.Render(NarratorName+": ") + wordwrap.String(text, width-len(NarratorName)-2)
	}
	return speakerStyle.Render(speaker+":") + "\n" + wordwrap.String(text, width)
}

func lineChanged(prev, next interpreter.Line) bool {
	return prev.State != next.State || prev.Scenario != next.Scenario || prev.Node != next.Node
}

func plainLine(line interpreter.Line) string {
	if line.Speaker == "" {
		return line.Text
	}
	return line.Speaker + ": " + line.Text
}

func writeMetadata(v *engine.View) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STATUS") + "\n\n")

	if v.Calendar.Day > 0 {
		content.WriteString(fmt.Sprintf("Day %d, %s\n", v.Calendar.Day, v.Calendar.Phase))
	}
	chapter := fmt.Sprintf("Chapter %d", v.Chapter)
	if v.ChapterTitle != "" {
		chapter += ": " + v.ChapterTitle
	}
	content.WriteString(chapter + "\n")
	content.WriteString(fmt.Sprintf("Playtime: %.1fh\n\n", v.TotalPlaytime))

	if len(v.Characters) > 0 {
		content.WriteString("Relationships:\n")
		for _, c := range v.Characters {
			content.WriteString(fmt.Sprintf("• %s %d (%s)\n", c.Name, c.Score, c.Status))
		}
		content.WriteString("\n")
	}

	if len(v.Flags) > 0 {
		content.WriteString("Flags:\n")
		for _, f := range v.Flags {
			content.WriteString("• " + f + "\n")
		}
		content.WriteString("\n")
	}

	if v.Ending != "" {
		content.WriteString("Ending: " + v.Ending + "\n\n")
	}

	content.WriteString(promptStyle.Render("? for help"))
	return content.String()
}

func formatDelta(d relationship.LedgerEvent) string {
	text := fmt.Sprintf("%s %+d (%d)", d.Character, d.Amount, d.Score)
	for _, c := range d.Crossed {
		text += fmt.Sprintf(", reached %s", c.Threshold.ID)
	}
	return text
}

func formatEvent(ev progression.EventFired) string {
	name := ev.Name
	if name == "" {
		name = ev.EventID
	}
	if ev.Character != "" {
		return fmt.Sprintf("Event: %s with %s", name, ev.Character)
	}
	return "Event: " + name
}

func formatSaves(saves []storage.SaveMeta) string {
	if len(saves) == 0 {
		return "No saves yet."
	}
	var b strings.Builder
	b.WriteString("Saves:")
	for _, s := range saves {
		name := s.Name
		if name == "" {
			name = "untitled"
		}
		b.WriteString(fmt.Sprintf("\n  %d. %s (day %d, chapter %d)", s.Slot, name, s.Day, s.Chapter))
	}
	return b.String()
}

// formatNotification renders pushed events that the step responses do not
// already show.
func formatNotification(ev SSEEvent) string {
	switch ev.Type {
	case "game.saved":
		if name, _ := ev.Data["name"].(string); name == "Autosave" {
			return "Autosaved."
		}
	case "relationship.threshold_crossed":
		character, _ := ev.Data["character"].(string)
		threshold, _ := ev.Data["threshold"].(string)
		if character != "" && threshold != "" {
			return fmt.Sprintf("%s reached %s.", character, threshold)
		}
	}
	return ""
}

func (m ConsoleUI) advance() tea.Cmd {
	return func() tea.Msg {
		step, err := m.api.advance()
		return stepMsg{step: step, err: err}
	}
}

func (m ConsoleUI) choose(index int, text string) tea.Cmd {
	return func() tea.Msg {
		step, err := m.api.choose(index)
		return stepMsg{step: step, choice: text, err: err}
	}
}

func (m ConsoleUI) tick() tea.Cmd {
	return func() tea.Msg {
		result, err := m.api.tick(tickHours)
		if err != nil {
			return tickMsg{err: err}
		}
		return tickMsg{result: result}
	}
}

func (m ConsoleUI) quickSave() tea.Cmd {
	return func() tea.Msg {
		meta, err := m.api.save(storage.QuicksaveSlot, "Quick Save")
		return savedMsg{meta: meta, err: err}
	}
}

func (m ConsoleUI) quickLoad() tea.Cmd {
	return func() tea.Msg {
		view, err := m.api.load(storage.QuicksaveSlot)
		return loadedMsg{view: view, err: err}
	}
}

func (m ConsoleUI) listSaves() tea.Cmd {
	return func() tea.Msg {
		saves, err := m.api.listSaves()
		return savesMsg{saves: saves, err: err}
	}
}

func (m ConsoleUI) refreshView() tea.Cmd {
	return func() tea.Msg {
		view, err := m.api.getView()
		return viewMsg{view: view, err: err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		case tea.KeyEsc:
			m.showQuitModal = false
			return m, nil
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				return m, nil
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is written to the autosave slot.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 2).Render(m.storyViewport.View())
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(m.metaViewport.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}
