package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/context-search/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/context-search/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/context-search/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/context-search/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/context-search/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/context-search/internal/core/domain"
)

// chromeHeight is the number of rows used by the header, input and status bar.
const chromeHeight = 6

// turn is one question and its answer.
type turn struct {
	question string
	answer   strings.Builder
	sources  []domain.Source
	stream   <-chan domain.Fragment
	err      error
	done     bool
}

// App is the chat application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	input    *input.QuestionInput
	status   *status.Bar
	viewport viewport.Model

	turns []*turn

	// cancel aborts the answer in progress; nil when idle.
	cancel context.CancelFunc

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new chat application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:    ports,
		ctx:      context.Background(),
		styles:   s,
		keymap:   km,
		input:    input.NewQuestionInput(s),
		status:   status.NewBar(s, km),
		viewport: viewport.New(80, 18),
	}, nil
}

// WithContext sets the parent context of every question.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.input.Init(),
		tea.SetWindowTitle("context-search"),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.StreamStarted:
		t := a.current(msg.Turn)
		if t == nil {
			return a, nil
		}
		t.sources = msg.Sources
		t.stream = msg.Stream
		a.status.SetState(status.StateStreaming)
		return a, waitForFragment(msg.Turn, msg.Stream)

	case messages.FragmentReceived:
		t := a.current(msg.Turn)
		if t == nil {
			return a, nil
		}
		if msg.Fragment.Err != nil {
			a.finish(msg.Fragment.Err)
			return a, nil
		}
		t.answer.WriteString(msg.Fragment.Text)
		if msg.Fragment.Done {
			a.finish(nil)
			return a, nil
		}
		a.refresh()
		return a, waitForFragment(msg.Turn, t.stream)

	case messages.StreamClosed:
		if a.current(msg.Turn) != nil {
			a.finish(nil)
		}
		return a, nil

	case messages.AnswerFailed:
		if a.current(msg.Turn) != nil {
			a.finish(msg.Err)
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keymap.Quit):
		a.stop()
		return a, tea.Quit

	case key.Matches(msg, a.keymap.Cancel):
		if a.busy() {
			a.stop()
			a.finish(nil)
		}
		return a, nil

	case key.Matches(msg, a.keymap.ScrollUp), key.Matches(msg, a.keymap.ScrollDown):
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd

	case key.Matches(msg, a.keymap.Clear):
		if !a.busy() {
			a.turns = nil
			a.status.Clear()
			a.refresh()
		}
		return a, nil

	case key.Matches(msg, a.keymap.Send):
		question := strings.TrimSpace(a.input.Value())
		if question == "" || a.busy() {
			return a, nil
		}
		a.input.Reset()
		return a, a.ask(question)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// ask starts a turn and returns the command that opens its stream.
func (a *App) ask(question string) tea.Cmd {
	a.turns = append(a.turns, &turn{question: question})
	id := len(a.turns)

	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	a.status.SetState(status.StateThinking)
	a.refresh()

	query := a.ports.Query
	return func() tea.Msg {
		stream, sources, err := query.AskStream(ctx, question, 0)
		if err != nil {
			return messages.AnswerFailed{Turn: id, Err: err}
		}
		return messages.StreamStarted{Turn: id, Stream: stream, Sources: sources}
	}
}

// waitForFragment reads the next fragment of a stream.
func waitForFragment(id int, stream <-chan domain.Fragment) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-stream
		if !ok {
			return messages.StreamClosed{Turn: id}
		}
		return messages.FragmentReceived{Turn: id, Fragment: f}
	}
}

// current returns the turn with the given id if it is still in progress.
func (a *App) current(id int) *turn {
	if id != len(a.turns) || id == 0 {
		return nil
	}
	t := a.turns[id-1]
	if t.done {
		return nil
	}
	return t
}

func (a *App) busy() bool {
	return len(a.turns) > 0 && !a.turns[len(a.turns)-1].done
}

func (a *App) stop() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// finish closes the current turn.
func (a *App) finish(err error) {
	if !a.busy() {
		return
	}
	t := a.turns[len(a.turns)-1]
	t.done = true
	t.err = err
	a.stop()

	if err != nil {
		a.status.SetState(status.StateError)
		a.status.SetMessage(err.Error())
	} else {
		a.status.SetState(status.StateReady)
		a.status.SetMessage("")
	}
	answered := 0
	for _, t := range a.turns {
		if t.err == nil {
			answered++
		}
	}
	a.status.SetTurns(answered)
	a.refresh()
}

// refresh re-renders the transcript and scrolls to the latest turn.
func (a *App) refresh() {
	a.viewport.SetContent(a.transcript())
	a.viewport.GotoBottom()
}

// transcript renders every turn.
func (a *App) transcript() string {
	if len(a.turns) == 0 {
		return a.styles.Muted.Render("Ask a question to get started.")
	}

	width := a.viewport.Width
	if width <= 0 {
		width = 80
	}
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, t := range a.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.styles.Question.Render("You: "))
		b.WriteString(wrap.Render(t.question))
		b.WriteString("\n")
		b.WriteString(a.styles.Answer.Render("Assistant: "))

		answer := t.answer.String()
		if answer == "" && !t.done {
			answer = a.styles.Muted.Render("...")
		}
		b.WriteString(wrap.Render(a.styles.Normal.Render(answer)))
		b.WriteString("\n")

		if t.err != nil {
			b.WriteString(a.styles.Error.Render("Error: " + t.err.Error()))
			b.WriteString("\n")
			continue
		}
		if t.done && len(t.sources) > 0 {
			b.WriteString(a.styles.Muted.Render("Sources:"))
			b.WriteString("\n")
			for j, src := range t.sources {
				b.WriteString(a.styles.Source.Render(formatSource(j+1, src)))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func formatSource(n int, src domain.Source) string {
	title := "(untitled)"
	if src.Title != nil {
		title = *src.Title
	}
	line := fmt.Sprintf("  [%d] %s (%.2f)", n, title, src.Score)
	if src.URL != nil {
		line += " " + *src.URL
	}
	return line
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Loading..."
	}

	header := a.styles.Title.Render("context-search")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.viewport.View(),
		a.input.View(),
		a.status.View(),
	)
}

// SetDimensions sets the terminal size.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	vpHeight := height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	a.viewport.Width = width
	a.viewport.Height = vpHeight
	a.input.SetWidth(width)
	a.status.SetWidth(width)
	a.refresh()
}

// Ready reports whether the terminal size is known.
func (a *App) Ready() bool {
	return a.ready
}

// Busy reports whether an answer is in progress.
func (a *App) Busy() bool {
	return a.busy()
}

// Transcript returns the rendered conversation.
func (a *App) Transcript() string {
	return a.transcript()
}
