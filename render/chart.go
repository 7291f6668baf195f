package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"

	"epschart/earnings"
)

const (
	ChartID       = "earningsChart"
	ActualLabel   = "Actual Earnings"
	EstimateLabel = "Earnings Estimates"

	actualColor   = "blue"
	estimateColor = "green"

	lineWidth  = 2
	markerSize = 8
)

type ChartOptions struct {
	Width      string
	Height     string
	AssetsHost string
}

// Chart is one live line chart. Only the line visibility changes after
// construction; new data means a new Chart.
type Chart struct {
	line       *charts.Line
	assetsHost string
	showLines  bool
}

// Snippet is the chart's container element and its init script.
type Snippet struct {
	Element template.HTML
	Script  template.HTML
}

// LinePatch is the setOption fragment that brings an existing browser-side
// chart instance in line with the server-side toggle.
type LinePatch struct {
	ShowLines bool          `json:"showLines"`
	Series    []SeriesPatch `json:"series"`
}

type SeriesPatch struct {
	Name      string         `json:"name"`
	LineStyle LineStylePatch `json:"lineStyle"`
}

type LineStylePatch struct {
	Width   float32 `json:"width"`
	Opacity float32 `json:"opacity"`
}

var seriesColors = []struct {
	name  string
	color string
}{
	{ActualLabel, actualColor},
	{EstimateLabel, estimateColor},
}

// NewChart plots actual and estimated EPS against the ending dates. The
// category axis is inverted, so with the API's newest-first order time runs
// left to right.
func NewChart(s earnings.Series, showLines bool, o ChartOptions) *Chart {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Quarterly Earnings",
			ChartID:    ChartID,
			Width:      o.Width,
			Height:     o.Height,
			AssetsHost: o.AssetsHost,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:    "category",
			Name:    "Quarter End Date",
			Show:    opts.Bool(true),
			Inverse: opts.Bool(true),
			Data:    s.EndingDates,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Name: "Earnings (in Dollars)",
			Show: opts.Bool(true),
		}),
	)
	line.SetXAxis(s.EndingDates)

	values := [][]decimal.NullDecimal{s.Actual, s.Estimate}
	for i, sc := range seriesColors {
		line.AddSeries(sc.name, lineData(values[i]),
			charts.WithLineChartOpts(opts.LineChart{
				Symbol:     "circle",
				SymbolSize: markerSize,
				ShowSymbol: opts.Bool(true),
				Smooth:     opts.Bool(false),
			}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: sc.color}),
		)
	}
	line.Validate()

	c := &Chart{line: line, assetsHost: o.AssetsHost}
	c.SetShowLines(showLines)
	return c
}

func lineData(values []decimal.NullDecimal) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		if !v.Valid {
			// echarts leaves a gap for "-"
			data[i] = opts.LineData{Value: "-"}
			continue
		}
		data[i] = opts.LineData{Value: v.Decimal.InexactFloat64()}
	}
	return data
}

func (c *Chart) ShowLines() bool {
	return c.showLines
}

// LineWidth is the stroke width currently applied to both series.
func (c *Chart) LineWidth() float32 {
	if c.showLines {
		return lineWidth
	}
	return 0
}

// SetShowLines restyles the existing series in place. Markers and colors are
// left alone.
func (c *Chart) SetShowLines(show bool) {
	c.showLines = show
	for i := range c.line.MultiSeries {
		color := seriesColors[i].color
		style := &opts.LineStyle{Color: color, Width: lineWidth}
		if !show {
			// width 0 is dropped by omitempty, opacity 0 is not
			style = &opts.LineStyle{Color: color, Width: 0, Opacity: opts.Float(0)}
		}
		c.line.MultiSeries[i].LineStyle = style
	}
}

// Toggle flips line visibility and returns the new state.
func (c *Chart) Toggle() bool {
	c.SetShowLines(!c.showLines)
	return c.showLines
}

func (c *Chart) LinePatch() LinePatch {
	return NewLinePatch(c.showLines)
}

// NewLinePatch is the series patch for the given line visibility. It does not
// need a chart, so a toggle before the first render still has an answer.
func NewLinePatch(show bool) LinePatch {
	p := LinePatch{ShowLines: show}
	style := LineStylePatch{Width: lineWidth, Opacity: 1}
	if !show {
		style = LineStylePatch{}
	}
	for _, sc := range seriesColors {
		p.Series = append(p.Series, SeriesPatch{Name: sc.name, LineStyle: style})
	}
	return p
}

// Option is the echarts option object as it would be sent to the browser.
func (c *Chart) Option() map[string]interface{} {
	return c.line.JSON()
}

// Snippet returns the container and init script. go-echarts writes the
// option JSON into the script unescaped, so the script body has <, > and &
// turned into JSON escapes; upstream strings cannot close the script tag.
func (c *Chart) Snippet() Snippet {
	s := c.line.RenderSnippet()
	return Snippet{
		Element: template.HTML(s.Element),
		Script:  template.HTML(escapeScriptBody(s.Script)),
	}
}

var scriptEscaper = strings.NewReplacer("<", `\u003c`, ">", `\u003e`, "&", `\u0026`)

// escapeScriptBody escapes everything between the opening <script ...> tag
// and the final </script>. The init script only has these characters inside
// string literals, where the escapes decode to the same text.
func escapeScriptBody(script string) string {
	start := strings.IndexByte(script, '>')
	end := strings.LastIndex(script, "</script>")
	if start < 0 || end <= start {
		return scriptEscaper.Replace(script)
	}
	return script[:start+1] + scriptEscaper.Replace(script[start+1:end]) + script[end:]
}

var standaloneTemplate = template.Must(template.New("standalone").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Quarterly Earnings</title>
  <script src="{{.AssetsHost}}echarts.min.js"></script>
</head>
<body>
{{.Chart.Element}}
{{.Chart.Script}}
</body>
</html>
`))

// Standalone is a complete HTML document with only the chart, used for
// headless snapshots.
func (c *Chart) Standalone() []byte {
	var buf bytes.Buffer
	err := standaloneTemplate.Execute(&buf, struct {
		AssetsHost string
		Chart      Snippet
	}{c.assetsHost, c.Snippet()})
	if err != nil {
		// the template is fixed and the writer is in memory
		panic(err)
	}
	return buf.Bytes()
}
