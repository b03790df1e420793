// Package ui is the interactive terminal front end for car lookups.
package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/abdhe/carscout/pkg/carinfo"
)

type (
	ratingsLoadedMsg struct {
		search  int
		ratings *carinfo.CarRatings
		err     error
	}
	descriptionLoadedMsg struct {
		search      int
		description string
		err         error
	}
	prosConsLoadedMsg struct {
		search   int
		prosCons *carinfo.ProsCons
		err      error
	}
)

// Model is the bubbletea model for the lookup screen.
type Model struct {
	ctx     context.Context
	lookup  carinfo.Lookup
	timeout time.Duration

	input   textinput.Model
	spinner spinner.Model
	state   ViewState
	width   int
}

// Option configures a Model.
type Option func(*Model)

// WithTimeout bounds each lookup; zero means no extra bound.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

// New creates the lookup screen backed by lookup.
func New(ctx context.Context, lookup carinfo.Lookup, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Enter a car model (e.g., 'Tesla Model 3')"
	ti.Prompt = "┃ "
	ti.CharLimit = 128
	ti.Width = 60
	ti.Focus()

	m := Model{
		ctx:    ctx,
		lookup: lookup,
		input:  ti,
		spinner: spinner.New(
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
			spinner.WithSpinner(spinner.Dot),
		),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// State returns the current view state.
func (m Model) State() ViewState { return m.state }

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.state.CanSearch() {
				return m, nil
			}
			next, ok := m.state.StartSearch(m.input.Value())
			m.state = next
			if !ok {
				return m, nil
			}
			return m, tea.Batch(m.spinner.Tick, m.fetchRatings(next.Search, next.Query))
		case tea.KeyCtrlD:
			next, ok := m.state.StartDescription()
			if !ok {
				return m, nil
			}
			m.state = next
			return m, tea.Batch(m.spinner.Tick, m.fetchDescription(next.Search, next.Query))
		case tea.KeyCtrlP:
			next, ok := m.state.StartProsCons()
			if !ok {
				return m, nil
			}
			m.state = next
			return m, tea.Batch(m.spinner.Tick, m.fetchProsCons(next.Search, next.Query))
		}

	case ratingsLoadedMsg:
		m.state = m.state.RatingsLoaded(msg.search, msg.ratings, msg.err)
		return m, nil

	case descriptionLoadedMsg:
		m.state = m.state.DescriptionLoaded(msg.search, msg.description, msg.err)
		return m, nil

	case prosConsLoadedMsg:
		m.state = m.state.ProsConsLoaded(msg.search, msg.prosCons, msg.err)
		return m, nil

	case spinner.TickMsg:
		if !m.state.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) callCtx() (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(m.ctx, m.timeout)
	}
	return context.WithCancel(m.ctx)
}

func (m Model) fetchRatings(search int, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		r, err := m.lookup.Ratings(ctx, query)
		return ratingsLoadedMsg{search: search, ratings: r, err: errors.Wrapf(err, "ratings for %q", query)}
	}
}

func (m Model) fetchDescription(search int, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		d, err := m.lookup.Description(ctx, query)
		return descriptionLoadedMsg{search: search, description: d, err: errors.Wrapf(err, "description for %q", query)}
	}
}

func (m Model) fetchProsCons(search int, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		pc, err := m.lookup.ProsAndCons(ctx, query)
		return prosConsLoadedMsg{search: search, prosCons: pc, err: errors.Wrapf(err, "pros and cons for %q", query)}
	}
}
