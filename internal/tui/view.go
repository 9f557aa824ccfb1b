package tui

import (
	"fmt"
	"strings"

	"github.com/cuivienor/carbon/internal/model"
)

const progressBarWidth = 30

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("carbon"))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render("quality: " + a.quality))
	b.WriteString("\n\n")

	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n\n")

	jobs, counts := a.store.Snapshot()
	selected := a.store.Selected()

	if len(jobs) == 0 {
		b.WriteString(mutedStyle.Render("No jobs yet. Paste a URL and press enter."))
		b.WriteString("\n")
	}
	for i, job := range jobs {
		b.WriteString(a.renderJob(job, i == selected))
	}

	b.WriteString(helpStyle.Render(fmt.Sprintf(
		"%d active · %d queued · %d done · %d failed    [enter] add  [↑/↓] select  [d] delete  [ctrl+l] clear done  [q] quit",
		counts.Active, counts.Queued, counts.Complete, counts.Failed)))

	return b.String()
}

// renderJob renders one two-line job row
func (a *App) renderJob(job model.Job, selected bool) string {
	cursor := "  "
	style := normalItemStyle
	if selected {
		cursor = "> "
		style = selectedItemStyle
	}

	line := cursor + StatusIcon(job.Status) + " " + style.Render(job.DisplayTitle())

	var detail string
	switch {
	case job.Status == model.JobStatusFailed:
		detail = errorStyle.Render(job.Err)
	case job.Status.IsActive():
		detail = fmt.Sprintf("%s %5.1f%%", RenderBar(job.Progress, progressBarWidth), job.Progress)
		if job.Speed != "" {
			detail += "  " + job.Speed
		}
		if job.Eta != "" {
			detail += "  ETA " + job.Eta
		}
		if job.Status == model.JobStatusConverting {
			detail += "  converting"
		}
	case job.Status == model.JobStatusComplete:
		detail = mutedStyle.Render(job.OutputPath)
	default:
		detail = mutedStyle.Render("queued")
	}

	return line + "\n    " + detail + "\n"
}
