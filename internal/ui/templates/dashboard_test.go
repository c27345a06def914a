package templates

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/services"
)

func TestDashboard(t *testing.T) {
	data := DashboardData{
		Title:      "Car Sales Dashboard",
		Brands:     []string{"Ford", "Audi", "<Acme>"},
		Years:      []int{2022, 2023},
		Dimensions: models.Dimensions(),
		MinDate:    "2022-01-02",
		MaxDate:    "2023-12-31",
		Defaults: services.Input{
			Brand:     "Audi",
			Year:      2023,
			Start:     "2022-01-02",
			End:       "2023-12-31",
			Dimension: string(models.DimensionGender),
		},
	}

	var buf strings.Builder
	if err := Dashboard(data).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := buf.String()

	expectedContent := []string{
		"<title>Car Sales Dashboard</title>",
		`data-signals="{&#34;brand&#34;:&#34;Audi&#34;`,
		`data-bind="brand"`,
		`data-bind="year"`,
		`data-bind="start"`,
		`data-bind="end"`,
		`data-bind="dimension"`,
		`$toggle = $toggle + 1`,
		`<option value="Audi" selected>Audi</option>`,
		`<option value="2023" selected>2023</option>`,
		`value="Gender" data-bind="dimension" data-on:change="@get('/sse/update')" checked`,
		`min="2022-01-02" max="2023-12-31"`,
		"&lt;Acme&gt;",
		`id="status"`,
		`id="charts"`,
		`id="summary"`,
		"@get('/sse/stream')",
		`&#34;_seq&#34;:0`,
		`<option value="Ford">Ford</option>`,
		`checked> Gender</label>`,
	}
	for _, content := range expectedContent {
		if !strings.Contains(html, content) {
			t.Errorf("expected page to contain %q", content)
		}
	}
	if strings.Contains(html, "<Acme>") {
		t.Error("brand names must be escaped")
	}
}

func TestPageSignals_OnlyControlsAreSent(t *testing.T) {
	in := services.Input{Brand: "Ford", Year: 2022, Toggle: 3, Start: "2022-01-02", End: "2023-12-31", Dimension: "Gender"}

	raw, err := pageSignals(in)
	if err != nil {
		t.Fatalf("pageSignals() error = %v", err)
	}
	var signals map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &signals); err != nil {
		t.Fatalf("signals are not JSON: %v", err)
	}

	// Datastar keeps underscored signals in the browser.
	var sent, local []string
	for name := range signals {
		if strings.HasPrefix(name, "_") {
			local = append(local, name)
		} else {
			sent = append(sent, name)
		}
	}
	sort.Strings(sent)
	sort.Strings(local)

	if diff := cmp.Diff([]string{"brand", "dimension", "end", "start", "toggle", "year"}, sent); diff != "" {
		t.Errorf("signals sent on @get mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"_hints", "_seq", "_views"}, local); diff != "" {
		t.Errorf("client-local signals mismatch (-want +got):\n%s", diff)
	}

	var back services.Input
	if err := json.Unmarshal([]byte(raw), &back); err != nil {
		t.Fatalf("decode controls: %v", err)
	}
	if back != in {
		t.Errorf("controls = %+v, want %+v", back, in)
	}
}
