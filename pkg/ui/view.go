package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"

	"github.com/abdhe/carscout/pkg/carinfo"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#60A5FA"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#60A5FA")).MarginTop(1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#991B1B")).Padding(0, 1)
	proStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	conStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	scoreStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FBBF24"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Global Car Ratings"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("Find ratings for your favorite cars from around the world."))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	s := m.state
	if s.LoadingRatings {
		b.WriteString("\n" + m.spinner.View() + " Searching...\n")
	}
	if s.Err != nil {
		b.WriteString("\n" + errorStyle.Render(carinfo.UserMessage(s.Err)) + "\n")
	}
	if s.Ratings != nil {
		b.WriteString(RenderRatings(s.Ratings))
	}
	if s.LoadingDescription {
		b.WriteString("\n" + m.spinner.View() + " Generating description...\n")
	}
	if s.Description != "" {
		b.WriteString(headingStyle.Render("About this car") + "\n")
		b.WriteString(lipgloss.NewStyle().Width(lo.Ternary(m.width > 0, m.width-2, 78)).Render(s.Description))
		b.WriteString("\n")
	}
	if s.LoadingProsCons {
		b.WriteString("\n" + m.spinner.View() + " Generating pros and cons...\n")
	}
	if s.ProsCons != nil {
		b.WriteString(RenderProsCons(s.ProsCons))
	}

	b.WriteString(helpStyle.Render(helpLine(s)))
	b.WriteString("\n")
	return b.String()
}

func helpLine(s ViewState) string {
	keys := []string{"enter: search"}
	if s.CanRequestDetails() {
		keys = append(keys, "ctrl+d: description", "ctrl+p: pros & cons")
	}
	keys = append(keys, "esc: quit")
	return strings.Join(keys, " • ")
}

// RenderRatings draws the title and a ratings table.
func RenderRatings(r *carinfo.CarRatings) string {
	rows := lo.Map(r.Ratings, func(rt carinfo.Rating, _ int) []string {
		return []string{rt.Source, rt.Type, rt.Score}
	})
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#374151"))).
		Headers("SOURCE", "TYPE", "SCORE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			st := lipgloss.NewStyle().Padding(0, 1)
			if row > 0 && col == 2 {
				return st.Inherit(scoreStyle)
			}
			return st
		})
	return headingStyle.Render(r.Title()) + "\n" + t.String() + "\n"
}

// RenderProsCons draws the pros and cons lists.
func RenderProsCons(pc *carinfo.ProsCons) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Pros") + "\n")
	for _, p := range pc.Pros {
		b.WriteString(proStyle.Render("  + "+p) + "\n")
	}
	b.WriteString(headingStyle.Render("Cons") + "\n")
	for _, c := range pc.Cons {
		b.WriteString(conStyle.Render("  - "+c) + "\n")
	}
	return b.String()
}
