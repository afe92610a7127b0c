// Package visualize asks a model whether a query result deserves a chart and validates
// the answer against the result's columns.
package visualize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/query"
)

const (
	ChartBar     = "bar"
	ChartLine    = "line"
	ChartPie     = "pie"
	ChartScatter = "scatter"
	ChartNone    = "none"

	// ColumnsMarker and ValuesMarker ask for a single wide row to be pivoted into
	// Metric/Value rows.
	ColumnsMarker = "__columns__"
	ValuesMarker  = "__values__"

	MetricColumn = "Metric"
	ValueColumn  = "Value"

	sampleSize = 3
)

type Spec struct {
	ChartType string      `json:"chart_type"`
	XAxis     string      `json:"x_axis"`
	YAxis     string      `json:"y_axis"`
	Title     string      `json:"title"`
	Data      []query.Row `json:"data,omitempty"`
}

type Advisor struct {
	completer nl2sql.Completer
	logger    *slog.Logger
}

func NewAdvisor(completer nl2sql.Completer, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{completer: completer, logger: logger}
}

// Suggest returns a chart for result, or nil when the data does not warrant one. Model
// failures are logged and yield nil.
func (a *Advisor) Suggest(ctx context.Context, question string, result query.Result) *Spec {
	if !Eligible(result) {
		return nil
	}

	prompt, err := buildPrompt(question, result)
	if err != nil {
		a.logger.WarnContext(ctx, "visualization prompt failed", "error", err)
		return nil
	}
	raw, err := a.completer.Complete(ctx, nl2sql.Prompt{
		System: "You are a data visualization expert.",
		User:   prompt,
	})
	if err != nil {
		a.logger.WarnContext(ctx, "visualization analysis failed", "error", err)
		return nil
	}

	payload, ok := nl2sql.ExtractJSON(raw)
	if !ok {
		a.logger.DebugContext(ctx, "visualization response had no JSON object")
		return nil
	}
	var spec Spec
	if err := json.Unmarshal([]byte(payload), &spec); err != nil {
		a.logger.WarnContext(ctx, "visualization response not decodable", "error", err)
		return nil
	}
	spec.Data = nil
	return Resolve(spec, result)
}

// Eligible reports whether result is worth charting: it must have rows, and a single row
// needs at least two numeric columns.
func Eligible(result query.Result) bool {
	if len(result.Rows) == 0 {
		return false
	}
	return len(result.Rows) >= 2 || len(NumericColumns(result)) >= 2
}

// Resolve checks spec against result, applying the wide-row pivot. It returns nil for
// specs that cannot be drawn.
func Resolve(spec Spec, result query.Result) *Spec {
	spec.ChartType = strings.ToLower(strings.TrimSpace(spec.ChartType))
	switch spec.ChartType {
	case ChartBar, ChartLine, ChartPie, ChartScatter:
	default:
		return nil
	}

	if spec.XAxis == ColumnsMarker && spec.YAxis == ValuesMarker && len(result.Rows) == 1 {
		numeric := NumericColumns(result)
		if len(numeric) == 0 {
			return nil
		}
		data := make([]query.Row, 0, len(numeric))
		for _, column := range numeric {
			data = append(data, query.Row{MetricColumn: column, ValueColumn: result.Rows[0][column]})
		}
		spec.XAxis = MetricColumn
		spec.YAxis = ValueColumn
		spec.Data = data
		return &spec
	}

	if !hasColumn(result.Columns, spec.XAxis) {
		return nil
	}
	if spec.YAxis != "" && !hasColumn(result.Columns, spec.YAxis) {
		return nil
	}
	return &spec
}

// NumericColumns lists, in result order, the columns whose non-null values are all numbers.
// Columns that are entirely null are not numeric.
func NumericColumns(result query.Result) []string {
	numeric := make([]string, 0, len(result.Columns))
	for _, column := range result.Columns {
		seen := false
		allNumeric := true
		for _, row := range result.Rows {
			value := row[column]
			if value == nil {
				continue
			}
			if !isNumber(value) {
				allNumeric = false
				break
			}
			seen = true
		}
		if seen && allNumeric {
			numeric = append(numeric, column)
		}
	}
	return numeric
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func hasColumn(columns []string, name string) bool {
	for _, column := range columns {
		if column == name {
			return true
		}
	}
	return false
}

func buildPrompt(question string, result query.Result) (string, error) {
	sample := result.Rows
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	columnsJSON, err := json.Marshal(result.Columns)
	if err != nil {
		return "", fmt.Errorf("marshal columns: %w", err)
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return "", fmt.Errorf("marshal data sample: %w", err)
	}

	return fmt.Sprintf(`User Question: %s
Data Columns: %s
Data Sample: %s

Determine if this data should be visualized.
If yes, choose the best chart type from: ['bar', 'line', 'pie', 'scatter'].

Rules:
- Comparison of categories -> 'bar'
- Trends over time (dates/years) -> 'line'
- Distribution of parts to whole -> 'pie'
- Correlation between two numbers -> 'scatter'
- Wide-format single row: if there is only 1 row but multiple metric columns (e.g. current_sales, previous_sales), use 'bar' with "x_axis": "%s" and "y_axis": "%s".

Return ONLY a JSON object with this format:
{
    "chart_type": "bar/line/pie/scatter/none",
    "x_axis": "column_name_for_x",
    "y_axis": "column_name_for_y",
    "title": "A short descriptive title for the chart"
}`, question, columnsJSON, sampleJSON, ColumnsMarker, ValuesMarker), nil
}
