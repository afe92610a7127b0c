package visualize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/query"
)

func TestSuggestSkipsIneligibleResultsWithoutModel(t *testing.T) {
	calls := 0
	advisor := NewAdvisor(nl2sql.CompleterFunc(func(context.Context, nl2sql.Prompt) (string, error) {
		calls++
		return `{"chart_type":"bar","x_axis":"a","y_axis":"b"}`, nil
	}), nil)

	results := []query.Result{
		{Columns: []string{"n"}, Rows: []query.Row{}},
		{Columns: []string{"n"}, Rows: []query.Row{{"n": int64(42)}}},
		{Columns: []string{"name", "n"}, Rows: []query.Row{{"name": "Rock", "n": int64(42)}}},
	}
	for _, result := range results {
		if spec := advisor.Suggest(context.Background(), "q", result); spec != nil {
			t.Fatalf("Suggest() = %#v, want nil", spec)
		}
	}
	if calls != 0 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestSuggestBarChart(t *testing.T) {
	var seen nl2sql.Prompt
	advisor := NewAdvisor(nl2sql.CompleterFunc(func(_ context.Context, prompt nl2sql.Prompt) (string, error) {
		seen = prompt
		return "```json\n{\"chart_type\": \"bar\", \"x_axis\": \"Genre\", \"y_axis\": \"Tracks\", \"title\": \"Tracks per genre\"}\n```", nil
	}), nil)
	result := query.Result{
		Columns: []string{"Genre", "Tracks"},
		Rows: []query.Row{
			{"Genre": "Rock", "Tracks": int64(1297)},
			{"Genre": "Latin", "Tracks": int64(579)},
			{"Genre": "Metal", "Tracks": int64(374)},
			{"Genre": "Jazz", "Tracks": int64(130)},
		},
	}

	spec := advisor.Suggest(context.Background(), "Tracks per genre", result)
	if spec == nil {
		t.Fatal("Suggest() = nil")
	}
	if spec.ChartType != ChartBar || spec.XAxis != "Genre" || spec.YAxis != "Tracks" || spec.Title != "Tracks per genre" {
		t.Fatalf("spec = %#v", spec)
	}
	if strings.Contains(seen.User, "Jazz") {
		t.Fatal("prompt sample should hold at most 3 rows")
	}
	if !strings.Contains(seen.User, `["Genre","Tracks"]`) {
		t.Fatalf("prompt missing columns: %q", seen.User)
	}
}

func TestSuggestPivotsWideSingleRow(t *testing.T) {
	advisor := NewAdvisor(nl2sql.CompleterFunc(func(context.Context, nl2sql.Prompt) (string, error) {
		return `Here: {"chart_type": "bar", "x_axis": "__columns__", "y_axis": "__values__", "title": "2013 vs 2012"}`, nil
	}), nil)
	result := query.Result{
		Columns: []string{"label", "current_sales", "previous_sales"},
		Rows:    []query.Row{{"label": "Q4", "current_sales": 481.45, "previous_sales": 477.53}},
	}

	spec := advisor.Suggest(context.Background(), "Q4 2013 vs Q4 2012", result)
	if spec == nil {
		t.Fatal("Suggest() = nil")
	}
	if spec.XAxis != MetricColumn || spec.YAxis != ValueColumn {
		t.Fatalf("axes = %q/%q", spec.XAxis, spec.YAxis)
	}
	if len(spec.Data) != 2 || spec.Data[0][MetricColumn] != "current_sales" || spec.Data[1][ValueColumn] != 477.53 {
		t.Fatalf("data = %#v", spec.Data)
	}
}

func TestSuggestReturnsNilForUnusableAnswers(t *testing.T) {
	result := query.Result{
		Columns: []string{"Year", "Total"},
		Rows:    []query.Row{{"Year": "2012", "Total": 477.53}, {"Year": "2013", "Total": 450.58}},
	}
	answers := []struct {
		name   string
		answer string
		err    error
	}{
		{name: "none", answer: `{"chart_type": "none", "x_axis": "", "y_axis": "", "title": ""}`},
		{name: "unknown axis", answer: `{"chart_type": "line", "x_axis": "Month", "y_axis": "Total"}`},
		{name: "unknown chart", answer: `{"chart_type": "heatmap", "x_axis": "Year", "y_axis": "Total"}`},
		{name: "markers on many rows", answer: `{"chart_type": "bar", "x_axis": "__columns__", "y_axis": "__values__"}`},
		{name: "prose", answer: "This data is not suitable for a chart."},
		{name: "broken json", answer: `{"chart_type": "bar",`},
		{name: "model error", err: errors.New("timeout")},
	}
	for _, tc := range answers {
		t.Run(tc.name, func(t *testing.T) {
			advisor := NewAdvisor(nl2sql.CompleterFunc(func(context.Context, nl2sql.Prompt) (string, error) {
				return tc.answer, tc.err
			}), nil)
			if spec := advisor.Suggest(context.Background(), "q", result); spec != nil {
				t.Fatalf("Suggest() = %#v, want nil", spec)
			}
		})
	}
}

func TestNumericColumns(t *testing.T) {
	result := query.Result{
		Columns: []string{"name", "total", "discount", "empty"},
		Rows: []query.Row{
			{"name": "a", "total": int64(1), "discount": nil, "empty": nil},
			{"name": "b", "total": 2.5, "discount": float32(0.1), "empty": nil},
		},
	}
	got := NumericColumns(result)
	if len(got) != 2 || got[0] != "total" || got[1] != "discount" {
		t.Fatalf("NumericColumns() = %v", got)
	}
}
