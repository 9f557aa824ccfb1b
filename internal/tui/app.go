package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/cuivienor/carbon/internal/config"
	"github.com/cuivienor/carbon/internal/model"
	"github.com/cuivienor/carbon/internal/queue"
	"github.com/cuivienor/carbon/internal/state"
)

// TitleProber looks up a video title without downloading
type TitleProber interface {
	ProbeTitle(ctx context.Context, url string) (string, error)
}

// App is the main application model
type App struct {
	cfg    *config.Config
	store  *state.Store
	queue  *queue.Queue
	prober TitleProber

	input   textinput.Model
	quality string

	width  int
	height int
}

// NewApp creates the application model
func NewApp(cfg *config.Config, store *state.Store, q *queue.Queue, prober TitleProber) *App {
	input := textinput.New()
	input.Placeholder = "Paste a video URL and press enter"
	input.Prompt = "> "
	input.Focus()

	return &App{
		cfg:     cfg,
		store:   store,
		queue:   q,
		prober:  prober,
		input:   input,
		quality: cfg.DefaultQuality,
	}
}

// updateMsg carries one job update from the queue's stream
type updateMsg struct {
	ev model.Event
}

// titleMsg carries an early title probe result
type titleMsg struct {
	id    uuid.UUID
	title string
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.waitForUpdate())
}

// waitForUpdate blocks on the queue's update stream
func (a *App) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return updateMsg{ev: <-a.queue.Updates()}
	}
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		return a, nil

	case updateMsg:
		a.store.Apply(msg.ev)
		return a, a.waitForUpdate()

	case titleMsg:
		// The download phase may have produced a better title already
		if job, ok := a.store.Get(msg.id); ok && job.Title == "" {
			a.store.Apply(model.Event{JobID: msg.id, Update: model.TitleUpdate{Title: msg.title}})
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

// handleKey routes keys between list commands and the input field.
// Single-letter commands only fire while the input is empty, otherwise
// they type.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inputEmpty := a.input.Value() == ""

	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "ctrl+v":
		if text, err := clipboard.ReadAll(); err == nil {
			a.input.SetValue(a.input.Value() + cleanPaste(text))
			a.input.CursorEnd()
		}
		return a, nil

	case "ctrl+l":
		a.store.ClearCompleted()
		return a, nil

	case "enter":
		return a, a.submit()

	case "esc":
		a.input.Reset()
		return a, nil

	case "q":
		if inputEmpty {
			return a, tea.Quit
		}

	case "d":
		if inputEmpty && a.store.Len() > 0 {
			a.store.DeleteSelected()
			return a, nil
		}

	case "up":
		if inputEmpty {
			a.store.MoveUp()
			return a, nil
		}

	case "down":
		if inputEmpty {
			a.store.MoveDown()
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit creates a job for the entered URL, hands all unclaimed queued
// jobs to the queue, and fires an early title probe
func (a *App) submit() tea.Cmd {
	url := strings.TrimSpace(a.input.Value())
	if url == "" {
		return nil
	}
	a.input.Reset()

	id := a.store.Submit(url)
	a.dispatch()
	return a.probeTitle(id, url)
}

// dispatch starts every queued job that has not been claimed yet
func (a *App) dispatch() {
	for _, job := range a.store.ClaimQueued() {
		a.queue.StartJob(job.ID, job.URL, a.quality)
	}
}

// probeTitle resolves a title in the background so queued jobs show
// something better than their URL
func (a *App) probeTitle(id uuid.UUID, url string) tea.Cmd {
	if a.prober == nil {
		return nil
	}
	return func() tea.Msg {
		title, err := a.prober.ProbeTitle(context.Background(), url)
		if err != nil {
			return nil
		}
		return titleMsg{id: id, title: title}
	}
}

// cleanPaste strips newlines so a pasted URL stays on one line
func cleanPaste(text string) string {
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, "\r", "")
	return strings.TrimSpace(text)
}
