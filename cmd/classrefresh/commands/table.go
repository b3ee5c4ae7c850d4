package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"classrefresh/internal/catalog"
	"classrefresh/internal/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
)

var output io.Writer = os.Stdout

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(output)
	return t
}

func renderSummary(summary pipeline.Summary) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("Run %s", summary.RunID))
	t.AppendHeader(table.Row{"Checked", "Written", "Skipped", "Malformed", "Rate limited", "Connection retries", "Elapsed"})
	t.AppendRow(table.Row{
		summary.Checked,
		summary.Written,
		summary.Skipped,
		summary.Malformed,
		summary.RateLimited,
		summary.ConnectionRetries,
		summary.Elapsed.Round(time.Millisecond).String(),
	})
	t.Render()
}

func seats(count catalog.SeatCount) string {
	return fmt.Sprintf("%d/%d (%d left)", count.Actual, count.Capacity, count.Remaining)
}

func optional(clause *string) string {
	if clause == nil {
		return "-"
	}
	return *clause
}

func renderCourse(course catalog.Course) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("%d", course.ID))
	t.AppendRows([]table.Row{
		{"Code", course.Code},
		{"Name", course.Name},
		{"Credits", fmt.Sprintf("%.3f", course.Credits)},
		{"Seats", seats(course.Seats)},
		{"Waitlist", seats(course.Waitlist)},
		{"Restrictions", optional(course.Restrictions)},
		{"Prerequisites", optional(course.Prerequisites)},
		{"Last updated", course.LastUpdated.Format(time.RFC3339)},
	})
	t.Render()
}

func renderCourses(courses []catalog.Course) {
	t := newTable()
	t.AppendHeader(table.Row{"CRN", "Code", "Name", "Credits", "Seats", "Waitlist", "Last updated"})
	for _, course := range courses {
		t.AppendRow(table.Row{
			course.ID,
			course.Code,
			course.Name,
			fmt.Sprintf("%.3f", course.Credits),
			seats(course.Seats),
			seats(course.Waitlist),
			course.LastUpdated.Format(time.RFC3339),
		})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(courses)})
	t.Render()
}
