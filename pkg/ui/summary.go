package ui

import (
	"fmt"
	"io"
	"strconv"

	"fvdownloader/pkg/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Totals aggregates a batch of summaries
type Totals struct {
	Done         int
	Unfinished   int
	Images       int
	FailedImages int
	Skipped      int
}

// Tally sums summaries
func Tally(summaries []models.CollectionSummary) Totals {
	var t Totals
	for _, s := range summaries {
		if s.Status == models.StatusDone {
			t.Done++
		} else {
			t.Unfinished++
		}
		t.Images += s.Succeeded
		t.FailedImages += s.Failed
		t.Skipped += s.Skipped
	}
	return t
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusStyle = map[models.CollectionStatus]lipgloss.Style{
		models.StatusDone:            cellStyle.Foreground(lipgloss.Color("2")),
		models.StatusPartiallyFailed: cellStyle.Foreground(lipgloss.Color("3")),
		models.StatusCancelled:       cellStyle.Foreground(lipgloss.Color("3")),
		models.StatusFailed:          cellStyle.Foreground(lipgloss.Color("1")),
	}
)

const statusColumn = 1

// PrintSummary writes a table with one row per collection followed by the
// batch totals
func PrintSummary(w io.Writer, summaries []models.CollectionSummary) {
	if len(summaries) == 0 {
		return
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		name := s.Request.URL
		if s.Info != (models.CollectionInfo{}) {
			name = s.Info.String()
		}
		problem := ""
		if s.Err != nil {
			problem = Truncate(s.Err.Error(), 60)
		}
		rows = append(rows, []string{
			Truncate(name, 56),
			string(s.Status),
			fmt.Sprintf("%d/%d", s.Succeeded, s.Total),
			strconv.Itoa(s.Failed),
			FormatDuration(s.Duration),
			problem,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("COLLECTION", "STATUS", "SAVED", "FAILED", "TIME", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusColumn && row >= 0 && row < len(summaries) {
				if st, ok := statusStyle[summaries[row].Status]; ok {
					return st
				}
			}
			return cellStyle
		})

	fmt.Fprintln(w, t.Render())

	totals := Tally(summaries)
	fmt.Fprintf(w, "%d/%d collections complete • %d images saved", totals.Done, len(summaries), totals.Images)
	if totals.FailedImages > 0 {
		fmt.Fprintf(w, " • %d failed", totals.FailedImages)
	}
	if totals.Skipped > 0 {
		fmt.Fprintf(w, " • %d skipped", totals.Skipped)
	}
	fmt.Fprintln(w)
}
