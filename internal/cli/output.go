package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Printer renders command results in the selected format.
type Printer struct {
	Format string
	Writer io.Writer
}

// Data writes v as JSON or YAML. Table output falls back to render.
func (p *Printer) Data(v any, render func(w io.Writer)) error {
	switch p.Format {
	case "json":
		enc := json.NewEncoder(p.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		render(p.Writer)
		return nil
	}
}

// Message prints a one-line confirmation.
func (p *Printer) Message(msg string) error {
	return p.Data(map[string]string{"message": msg}, func(w io.Writer) {
		fmt.Fprintln(w, msg)
	})
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (p *Printer) State(rec schema.StateRecord) error {
	return p.render(rec, []schema.StateRecord{rec})
}

func (p *Printer) States(recs []schema.StateRecord) error {
	return p.render(recs, recs)
}

func (p *Printer) render(v any, recs []schema.StateRecord) error {
	return p.Data(v, func(w io.Writer) {
		t := newTable(w)
		t.AppendHeader(table.Row{"Name", "Status", "Description", "Created By", "Created", "Updated"})
		for _, r := range recs {
			t.AppendRow(table.Row{r.Name, r.Status, r.Description, r.CreatedBy, stamp(r.CreatedAt), stamp(r.UpdatedAt)})
		}
		t.Render()
	})
}

func (p *Printer) Users(users []schema.UserAccount) error {
	return p.Data(users, func(w io.Writer) {
		t := newTable(w)
		t.AppendHeader(table.Row{"Email", "Name", "Access"})
		for _, u := range users {
			t.AppendRow(table.Row{u.Email, u.Name, u.Access})
		}
		t.Render()
	})
}

// Summary renders the three report sections as separate tables.
func (p *Printer) Summary(s schema.Summary) error {
	return p.Data(s, func(w io.Writer) {
		fmt.Fprintf(w, "Total: %d  Success: %.2f%%  Cancelled: %.2f%%\n\n",
			s.TotalCount, s.SuccessRate, s.CancellationRate)

		rates := newTable(w)
		rates.SetTitle("Status distribution")
		rates.AppendHeader(table.Row{"Status", "Rate %"})
		for _, r := range s.StatusRates {
			rates.AppendRow(table.Row{r.Status, fmt.Sprintf("%.2f", r.Rate)})
		}
		rates.Render()

		freq := newTable(w)
		freq.SetTitle("Activity")
		freq.AppendHeader(table.Row{"Interval", "Created", "Updated", "Total"})
		for _, b := range s.FrequencyData {
			freq.AppendRow(table.Row{b.Interval, b.CreationCount, b.UpdateCount, b.TotalCount})
		}
		freq.Render()

		peaks := newTable(w)
		peaks.SetTitle("Peak hours")
		peaks.AppendHeader(table.Row{"Date", "Time", "Requests"})
		for _, ph := range s.TopPeakHours {
			peaks.AppendRow(table.Row{ph.Date, ph.Time, ph.RequestCount})
		}
		peaks.Render()
	})
}
