package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/claude/liftlog/internal/models"
)

const pollInterval = 250 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle   = lipgloss.NewStyle().Bold(true)
	timerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	recordStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

type uiMode int

const (
	modeLoading uiMode = iota
	modeRecoveryPrompt
	modeWorkout
	modeLogSet
	modeDone
)

// Messages.
type (
	tickMsg      time.Time
	sessionMsg   *SessionView
	recoveryMsg  *RecoveryView
	completedMsg *CompletionView
	errMsg       struct{ err error }
)

// Model is the workout runner TUI.
type Model struct {
	client   *Client
	template *StartPayload

	mode     uiMode
	sess     *SessionView
	recovery *RecoveryView
	result   *CompletionView
	err      error

	weightInput textinput.Model
	repsInput   textinput.Model
	focusReps   bool

	width int
}

// NewModel creates the runner model. When template is non-nil and no
// session or recovery record exists, it is started automatically.
func NewModel(client *Client, template *StartPayload) Model {
	weight := textinput.New()
	weight.Placeholder = "kg"
	weight.CharLimit = 7
	weight.Width = 8

	reps := textinput.New()
	reps.Placeholder = "reps"
	reps.CharLimit = 3
	reps.Width = 5

	return Model{
		client:      client,
		template:    template,
		mode:        modeLoading,
		weightInput: weight,
		repsInput:   reps,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.bootstrap, tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// bootstrap resolves the starting state: an existing session wins,
// then a fresh recovery record, then the template given on the
// command line.
func (m Model) bootstrap() tea.Msg {
	if err := m.client.Sync(); err != nil {
		return errMsg{err}
	}
	sess, err := m.client.Session()
	if err != nil {
		return errMsg{err}
	}
	if sess != nil {
		return sessionMsg(sess)
	}

	rec, err := m.client.Recovery()
	if err != nil {
		return errMsg{err}
	}
	if rec != nil {
		return recoveryMsg(rec)
	}

	if m.template != nil {
		sess, err := m.client.Start(*m.template)
		if err != nil {
			return errMsg{err}
		}
		return sessionMsg(sess)
	}
	return errMsg{fmt.Errorf("no active session and no -template given")}
}

func (m Model) refresh() tea.Msg {
	sess, err := m.client.Session()
	if err != nil {
		return errMsg{err}
	}
	if sess == nil {
		return errMsg{fmt.Errorf("session disappeared")}
	}
	return sessionMsg(sess)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case sessionMsg:
		m.sess = msg
		m.err = nil
		if m.mode == modeLoading || m.mode == modeRecoveryPrompt {
			m.mode = modeWorkout
		}
		return m, nil

	case recoveryMsg:
		m.recovery = msg
		m.mode = modeRecoveryPrompt
		return m, nil

	case completedMsg:
		m.result = msg
		m.mode = modeDone
		return m, nil

	case tickMsg:
		if m.mode == modeWorkout {
			return m, tea.Batch(m.refresh, tick())
		}
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeRecoveryPrompt:
		return m.handleRecoveryKey(msg)
	case modeWorkout:
		return m.handleWorkoutKey(msg)
	case modeLogSet:
		return m.handleLogSetKey(msg)
	case modeDone:
		if msg.String() == "q" || msg.String() == "enter" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) handleRecoveryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		return m, func() tea.Msg {
			sess, err := m.client.ResumeRecovery()
			if err != nil {
				return errMsg{err}
			}
			return sessionMsg(sess)
		}
	case "n", "d":
		template := m.template
		return m, func() tea.Msg {
			if err := m.client.DiscardRecovery(); err != nil {
				return errMsg{err}
			}
			if template == nil {
				return errMsg{fmt.Errorf("recovery discarded; no -template to start")}
			}
			sess, err := m.client.Start(*template)
			if err != nil {
				return errMsg{err}
			}
			return sessionMsg(sess)
		}
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleWorkoutKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sess == nil {
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "enter", " ":
		if m.sess.Step.Kind == models.StepComplete {
			return m, m.complete
		}
		return m, m.advance

	case "l":
		if m.sess.Step.Kind == models.StepExercise {
			m.mode = modeLogSet
			m.weightInput.SetValue("")
			m.repsInput.SetValue("")
			m.focusReps = false
			m.weightInput.Focus()
			m.repsInput.Blur()
			return m, textinput.Blink
		}

	case "s":
		if m.sess.Step.Kind == models.StepRest {
			return m, func() tea.Msg {
				sess, err := m.client.SkipRest()
				if err != nil {
					return errMsg{err}
				}
				return sessionMsg(sess)
			}
		}

	case "+", "=":
		return m, m.adjust(15)

	case "-":
		return m, m.adjust(-15)

	case "f":
		return m, func() tea.Msg {
			sess, err := m.client.FinishEarly()
			if err != nil {
				return errMsg{err}
			}
			return sessionMsg(sess)
		}
	}
	return m, nil
}

func (m Model) handleLogSetKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeWorkout
		return m, nil

	case "tab":
		m.focusReps = !m.focusReps
		if m.focusReps {
			m.weightInput.Blur()
			m.repsInput.Focus()
		} else {
			m.repsInput.Blur()
			m.weightInput.Focus()
		}
		return m, textinput.Blink

	case "enter":
		set, err := m.buildSet()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.mode = modeWorkout
		return m, func() tea.Msg {
			sess, err := m.client.LogSet(set)
			if err != nil {
				return errMsg{err}
			}
			return sessionMsg(sess)
		}
	}

	var cmd tea.Cmd
	if m.focusReps {
		m.repsInput, cmd = m.repsInput.Update(msg)
	} else {
		m.weightInput, cmd = m.weightInput.Update(msg)
	}
	return m, cmd
}

// buildSet parses the form into a PerformedSet for the current step.
// Weight is entered in kilograms and stored in grams.
func (m Model) buildSet() (models.PerformedSet, error) {
	step := m.sess.Step

	kg, err := strconv.ParseFloat(strings.TrimSpace(m.weightInput.Value()), 64)
	if err != nil || kg < 0 {
		return models.PerformedSet{}, fmt.Errorf("invalid weight %q", m.weightInput.Value())
	}
	reps, err := strconv.Atoi(strings.TrimSpace(m.repsInput.Value()))
	if err != nil || reps <= 0 {
		return models.PerformedSet{}, fmt.Errorf("invalid reps %q", m.repsInput.Value())
	}

	return models.PerformedSet{
		Exercise:   step.Exercise,
		BlockIndex: step.BlockIndex,
		SetIndex:   step.SetIndex,
		TargetReps: step.Reps,
		Reps:       reps,
		WeightG:    int64(kg * 1000),
	}, nil
}

func (m Model) advance() tea.Msg {
	sess, err := m.client.Advance()
	if err != nil {
		return errMsg{err}
	}
	return sessionMsg(sess)
}

func (m Model) adjust(deltaSec int) tea.Cmd {
	return func() tea.Msg {
		sess, err := m.client.AdjustRest(deltaSec)
		if err != nil {
			return errMsg{err}
		}
		return sessionMsg(sess)
	}
}

func (m Model) complete() tea.Msg {
	result, err := m.client.Complete()
	if err != nil {
		return errMsg{err}
	}
	return completedMsg(result)
}

func (m Model) View() string {
	var b strings.Builder

	switch m.mode {
	case modeLoading:
		b.WriteString("connecting...\n")

	case modeRecoveryPrompt:
		b.WriteString(titleStyle.Render("Interrupted workout found") + "\n\n")
		if m.recovery != nil {
			fmt.Fprintf(&b, "  %s — started %s, last saved %s\n\n",
				m.recovery.TemplateName,
				m.recovery.StartedAt.Format("15:04"),
				m.recovery.SavedAt.Format("15:04"))
		}
		b.WriteString("  [y] resume   [n] discard   [q] quit\n")

	case modeWorkout, modeLogSet:
		m.renderWorkout(&b)

	case modeDone:
		m.renderDone(&b)
	}

	if m.err != nil {
		b.WriteString("\n" + errStyle.Render("error: "+m.err.Error()) + "\n")
	}
	return b.String()
}

func (m Model) renderWorkout(b *strings.Builder) {
	if m.sess == nil {
		b.WriteString("waiting for session...\n")
		return
	}

	fmt.Fprintf(b, "%s  %s\n\n",
		titleStyle.Render(m.sess.TemplateName),
		dimStyle.Render(fmt.Sprintf("step %d/%d · %d/%d sets logged",
			m.sess.CurrentStep+1, m.sess.StepCount, m.sess.LoggedSets, m.sess.TotalSets)))

	step := m.sess.Step
	switch step.Kind {
	case models.StepExercise:
		label := fmt.Sprintf("%s — set %d of %d", step.Exercise.Name, step.SetIndex+1, step.TotalSets)
		if step.SupersetSize > 0 {
			label += fmt.Sprintf(" (superset round %d, %d/%d)",
				step.SupersetRound+1, step.SupersetPos+1, step.SupersetSize)
		}
		b.WriteString("  " + stepStyle.Render(label) + "\n")
		fmt.Fprintf(b, "  target: %s reps\n", formatRange(step.Reps))

	case models.StepRest:
		b.WriteString("  " + stepStyle.Render("Rest") + "\n")
		if m.sess.TimerRemainingMS != nil {
			remaining := time.Duration(*m.sess.TimerRemainingMS) * time.Millisecond
			b.WriteString("  " + timerStyle.Render(formatCountdown(remaining)) + "\n")
		} else {
			fmt.Fprintf(b, "  %d s (done)\n", step.RestSec)
		}

	case models.StepComplete:
		if m.sess.LoggedSets < m.sess.TotalSets {
			fmt.Fprintf(b, "  %s\n", stepStyle.Render("Recap — unlogged sets remain"))
		} else {
			b.WriteString("  " + stepStyle.Render("All sets logged") + "\n")
		}
	}

	b.WriteString("\n")

	if m.mode == modeLogSet {
		fmt.Fprintf(b, "  weight %s  reps %s   %s\n",
			m.weightInput.View(), m.repsInput.View(),
			dimStyle.Render("tab switch · enter save · esc cancel"))
		return
	}

	help := "[enter] advance  [l] log set  [q] quit"
	switch step.Kind {
	case models.StepRest:
		help = "[s] skip  [+/-] adjust 15s  [enter] advance  [q] quit"
	case models.StepComplete:
		help = "[enter] complete  [q] quit"
	default:
		help += "  [f] finish early"
	}
	b.WriteString("  " + dimStyle.Render(help) + "\n")
}

func (m Model) renderDone(b *strings.Builder) {
	b.WriteString(titleStyle.Render("Workout saved") + "\n\n")
	if m.result == nil {
		return
	}
	log := m.result.Log
	fmt.Fprintf(b, "  %s · %s · %d sets · %.1f kg total volume\n",
		log.TemplateName, log.Status,
		len(log.PerformedSets), float64(log.TotalVolume)/1000)

	for _, r := range m.result.Records {
		var kinds []string
		if r.NewWeight {
			kinds = append(kinds, fmt.Sprintf("weight %.1f kg", float64(r.BestWeightG)/1000))
		}
		if r.NewVolume {
			kinds = append(kinds, fmt.Sprintf("volume %.1f kg", float64(r.TotalVolume)/1000))
		}
		if r.New1RM && r.Est1RMG != nil {
			kinds = append(kinds, fmt.Sprintf("est. 1RM %.1f kg", float64(*r.Est1RMG)/1000))
		}
		fmt.Fprintf(b, "  %s %s: %s\n",
			recordStyle.Render("PR"), r.ExerciseName, strings.Join(kinds, ", "))
	}

	b.WriteString("\n  " + dimStyle.Render("[enter] exit") + "\n")
}

func formatRange(r models.RepRange) string {
	if r.Min == r.Max {
		return strconv.Itoa(r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
