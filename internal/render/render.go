// Package render styles terminal output for the chat loop.
package render

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/harunnryd/kuroko/internal/store"
	"github.com/harunnryd/kuroko/internal/todo"
)

type Renderer struct {
	promptStyle    lipgloss.Style
	assistantStyle lipgloss.Style
	toolStyle      lipgloss.Style
	noticeStyle    lipgloss.Style
	errorStyle     lipgloss.Style
	headerStyle    lipgloss.Style
	borderStyle    lipgloss.Style
	dimStyle       lipgloss.Style
}

func New() *Renderer {
	purple := lipgloss.Color("99")
	blue := lipgloss.Color("39")
	yellow := lipgloss.Color("178")
	red := lipgloss.Color("196")
	gray := lipgloss.Color("245")

	return &Renderer{
		promptStyle:    lipgloss.NewStyle().Foreground(blue).Bold(true),
		assistantStyle: lipgloss.NewStyle().Foreground(purple).Bold(true),
		toolStyle:      lipgloss.NewStyle().Foreground(yellow),
		noticeStyle:    lipgloss.NewStyle().Foreground(gray).Italic(true),
		errorStyle:     lipgloss.NewStyle().Foreground(red).Bold(true),
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().Foreground(purple),
		dimStyle:    lipgloss.NewStyle().Foreground(gray).Padding(0, 1),
	}
}

func (r *Renderer) Prompt() string {
	return r.promptStyle.Render("You:") + " "
}

func (r *Renderer) AssistantHeader() string {
	return r.assistantStyle.Render("Assistant:")
}

func (r *Renderer) ToolCall(name string) string {
	return r.toolStyle.Render("→ " + name)
}

func (r *Renderer) ToolError(name, message string) string {
	return r.errorStyle.Render(fmt.Sprintf("✗ %s: %s", name, message))
}

func (r *Renderer) Notice(text string) string {
	return r.noticeStyle.Render(text)
}

func (r *Renderer) Error(err error) string {
	return r.errorStyle.Render("Error: " + err.Error())
}

// SessionTable renders the session index for `kuroko session list`.
func (r *Renderer) SessionTable(sessions []store.SessionMeta) string {
	if len(sessions) == 0 {
		return "No sessions found"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.headerStyle
			}
			return r.dimStyle
		}).
		Headers("ID", "Title", "Model", "Updated")

	for _, sess := range sessions {
		updated := ""
		if !sess.UpdatedAt.IsZero() {
			updated = sess.UpdatedAt.Format("2006-01-02 15:04")
		}
		t.Row(sess.ID, truncate(sess.Title, 40), sess.Model, updated)
	}
	return t.String()
}

// TodoTable renders the workspace todo list for `kuroko todo list`.
func (r *Renderer) TodoTable(todos []todo.Todo) string {
	if len(todos) == 0 {
		return "No todos found"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.headerStyle
			}
			return r.dimStyle
		}).
		Headers("ID", "Status", "Priority", "Description")

	for _, item := range todos {
		t.Row(item.ID, item.Status, item.Priority, truncate(item.Description, 50))
	}
	return t.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
