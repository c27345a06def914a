package handlers

import (
	"context"
	stderrors "errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"carsales-dashboard/internal/charts"
	apperrors "carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/services"
)

const maxSummaryCategories = 10

var statusTemplate = template.Must(template.New("status").Parse(`<div id="status" class="status{{if .Error}} error{{end}}">
{{if .Error}}{{.Error}}{{else}}Update #{{.Seq}} computed in {{.Duration}}{{if .Superseded}} ({{.Superseded}} superseded){{end}}{{end}}
</div>`))

var summaryTemplate = template.Must(template.New("summary").Parse(`<div id="summary">
<table class="modern-table">
<thead><tr><th>Brand</th><th>Year</th><th>From</th><th>To</th><th>Sales in year</th><th>Priced sales</th></tr></thead>
<tbody><tr>
<td>{{.Brand}}</td>
<td>{{.Year}}</td>
<td>{{.Start}}</td>
<td>{{.End}}</td>
<td><strong>{{.YearTotal}}</strong></td>
<td>{{.Points}}</td>
</tr></tbody>
</table>
<table class="modern-table">
<thead><tr><th>{{.Dimension}}</th><th>Sales</th></tr></thead>
<tbody>
{{range .Categories}}<tr><td><span class="category-badge">{{.Category}}</span></td><td>{{.Count}}</td></tr>
{{else}}<tr><td colspan="2">No sales in range</td></tr>
{{end}}</tbody>
</table>
</div>`))

var chartsTemplate = template.Must(template.New("charts").Parse(`<div id="charts" class="charts {{.Theme}}">
{{range .Charts}}<img id="chart-{{.Name}}" class="chart" alt="{{.Name}} chart" src="{{.URL}}">
{{end}}</div>`))

type SSEHandlers struct {
	controller   *services.Controller
	logger       *slog.Logger
	awaitTimeout time.Duration
}

func NewSSEHandlers(controller *services.Controller, awaitTimeout time.Duration, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		controller:   controller,
		logger:       logger,
		awaitTimeout: awaitTimeout,
	}
}

type statusData struct {
	Seq        uint64
	Duration   string
	Superseded int
	Error      string
}

type summaryData struct {
	Brand      string
	Year       int
	Start      string
	End        string
	YearTotal  int
	Points     int
	Dimension  models.Dimension
	Categories []models.CategoryCount
}

type chartLink struct {
	Name string
	URL  string
}

type chartsData struct {
	Theme  string
	Charts []chartLink
}

// frameSignals are patched as client-local signals. The leading underscore
// keeps Datastar from sending them back on every @get.
type frameSignals struct {
	Seq   uint64         `json:"_seq"`
	Views models.Views   `json:"_views"`
	Hints services.Hints `json:"_hints"`
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func chartLinks(frame services.Frame) chartsData {
	query := queryFor(frame.Params)
	links := make([]chartLink, 0, len(charts.Names()))
	for _, name := range charts.Names() {
		links = append(links, chartLink{Name: name, URL: "/charts/" + name + "?" + query})
	}
	return chartsData{Theme: frame.Hints.Theme, Charts: links}
}

func summaryOf(frame services.Frame) summaryData {
	categories := frame.Views.CategoricalDistribution.Counts
	if len(categories) > maxSummaryCategories {
		categories = categories[:maxSummaryCategories]
	}
	return summaryData{
		Brand:      frame.Params.Brand,
		Year:       frame.Params.Year,
		Start:      frame.Params.Interval.Start.Format(services.DateLayout),
		End:        frame.Params.Interval.End.Format(services.DateLayout),
		YearTotal:  frame.Views.MonthlyCount.Counts.Total(),
		Points:     len(frame.Views.PairedNumeric),
		Dimension:  frame.Views.CategoricalDistribution.Dimension,
		Categories: categories,
	}
}

// patchFrame sends one published frame: the view data as signals, then the
// status line, the summary tables and the chart images.
func (h *SSEHandlers) patchFrame(sse *datastar.ServerSentEventGenerator, frame services.Frame) error {
	if err := sse.MarshalAndPatchSignals(frameSignals{Seq: frame.Seq, Views: frame.Views, Hints: frame.Hints}); err != nil {
		return err
	}

	fragments := []struct {
		t    *template.Template
		data any
	}{
		{statusTemplate, statusData{Seq: frame.Seq, Duration: frame.Duration, Superseded: frame.Superseded}},
		{summaryTemplate, summaryOf(frame)},
		{chartsTemplate, chartLinks(frame)},
	}
	for _, f := range fragments {
		html, err := render(f.t, f.data)
		if err != nil {
			return err
		}
		if err := sse.PatchElements(html); err != nil {
			return err
		}
	}
	return nil
}

func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, message string) {
	html, err := render(statusTemplate, statusData{Error: message})
	if err != nil {
		h.logger.Error("render status", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Debug("patch status", "error", err)
	}
}

// HandleUpdate applies the signals sent by the page as a new snapshot and
// answers with the frame that reflects it.
func (h *SSEHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	signals := &dashboardSignals{}
	readErr := datastar.ReadSignals(r, signals)

	sse := datastar.NewSSE(w, r)

	if readErr != nil {
		h.logger.Warn("read signals", "error", readErr)
		h.patchError(sse, "Could not read the dashboard controls")
		return
	}

	seq, err := h.controller.Submit(signals.input())
	if err != nil {
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) && appErr.Code == apperrors.CodeInvalidFilter {
			h.patchError(sse, appErr.Message)
			return
		}
		h.logger.Error("submit snapshot", "error", err)
		h.patchError(sse, "Update failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.awaitTimeout)
	defer cancel()

	frame, err := h.controller.Await(ctx, seq)
	switch {
	case err == nil:
	case r.Context().Err() != nil:
		return
	case stderrors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("await frame", "seq", seq, "error", err)
		h.patchError(sse, "Update is taking longer than expected")
		return
	default:
		h.logger.Error("update failed", "seq", seq, "error", err)
		h.patchError(sse, "Update failed, the previous view is still shown")
		return
	}

	if err := h.patchFrame(sse, frame); err != nil {
		h.logger.Error("patch frame", "seq", frame.Seq, "error", err)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleStream pushes every published frame until the client goes away or
// the controller is closed.
func (h *SSEHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	frames, cancel := h.controller.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := h.patchFrame(sse, frame); err != nil {
				h.logger.Debug("stream closed", "error", err)
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
