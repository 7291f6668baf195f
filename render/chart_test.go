package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"epschart/earnings"
)

var testChartOptions = ChartOptions{Width: "900px", Height: "500px"}

func optionJSON(t *testing.T, c *Chart) string {
	t.Helper()
	raw, err := json.Marshal(c.Option())
	require.NoError(t, err)
	return string(raw)
}

func threeQuarters() earnings.Series {
	return earnings.Normalize("IBM", []earnings.Record{
		{FiscalDateEnding: "2024-03-31", ReportedDate: "2024-04-24", ReportedEPS: nd("1.68"), EstimatedEPS: nd("1.6"), Surprise: nd("0.08"), SurprisePercentage: nd("5")},
		{FiscalDateEnding: "2023-12-31", ReportedDate: "2024-01-24", ReportedEPS: nd("3.87"), EstimatedEPS: nd("3.78"), Surprise: nd("0.09"), SurprisePercentage: nd("2.38")},
		{FiscalDateEnding: "2023-09-30", ReportedDate: "2023-10-25", ReportedEPS: nd("2.2")},
	})
}

func TestNewChartConfiguration(t *testing.T) {
	opt := optionJSON(t, NewChart(threeQuarters(), true, testChartOptions))

	assert.Equal(t, `["2024-03-31","2023-12-31","2023-09-30"]`, gjson.Get(opt, "xAxis.0.data").Raw)
	assert.True(t, gjson.Get(opt, "xAxis.0.inverse").Bool())
	assert.Equal(t, "category", gjson.Get(opt, "xAxis.0.type").String())
	assert.Equal(t, "Quarter End Date", gjson.Get(opt, "xAxis.0.name").String())
	assert.Equal(t, "Earnings (in Dollars)", gjson.Get(opt, "yAxis.0.name").String())

	require.Equal(t, int64(2), gjson.Get(opt, "series.#").Int())
	assert.Equal(t, ActualLabel, gjson.Get(opt, "series.0.name").String())
	assert.Equal(t, EstimateLabel, gjson.Get(opt, "series.1.name").String())
	assert.Equal(t, "blue", gjson.Get(opt, "series.0.itemStyle.color").String())
	assert.Equal(t, "green", gjson.Get(opt, "series.1.itemStyle.color").String())
	assert.Equal(t, "blue", gjson.Get(opt, "series.0.lineStyle.color").String())
	assert.Equal(t, float64(2), gjson.Get(opt, "series.0.lineStyle.width").Float())
	assert.Equal(t, "circle", gjson.Get(opt, "series.1.symbol").String())

	assert.Equal(t, 1.68, gjson.Get(opt, "series.0.data.0.value").Float())
	assert.Equal(t, "-", gjson.Get(opt, "series.1.data.2.value").String())
}

func TestChartIsIdempotent(t *testing.T) {
	a := NewChart(threeQuarters(), true, testChartOptions)
	b := NewChart(threeQuarters(), true, testChartOptions)

	assert.Equal(t, optionJSON(t, a), optionJSON(t, b))
	assert.Equal(t, a.Snippet(), b.Snippet())
}

func TestToggleLines(t *testing.T) {
	c := NewChart(threeQuarters(), true, testChartOptions)
	original := optionJSON(t, c)
	require.Equal(t, float32(2), c.LineWidth())

	assert.False(t, c.Toggle())
	hidden := optionJSON(t, c)
	assert.Equal(t, float32(0), c.LineWidth())
	for _, i := range []string{"0", "1"} {
		assert.False(t, gjson.Get(hidden, "series."+i+".lineStyle.width").Exists())
		assert.Equal(t, float64(0), gjson.Get(hidden, "series."+i+".lineStyle.opacity").Float())
		assert.Equal(t, gjson.Get(original, "series."+i+".itemStyle").Raw, gjson.Get(hidden, "series."+i+".itemStyle").Raw)
		assert.Equal(t, gjson.Get(original, "series."+i+".symbol").Raw, gjson.Get(hidden, "series."+i+".symbol").Raw)
		assert.Equal(t, gjson.Get(original, "series."+i+".symbolSize").Raw, gjson.Get(hidden, "series."+i+".symbolSize").Raw)
	}

	assert.True(t, c.Toggle())
	assert.Equal(t, float32(2), c.LineWidth())
	assert.Equal(t, original, optionJSON(t, c))
}

func TestNewChartHiddenLines(t *testing.T) {
	c := NewChart(threeQuarters(), false, testChartOptions)
	assert.False(t, c.ShowLines())
	assert.Equal(t, float32(0), c.LineWidth())
}

func TestLinePatch(t *testing.T) {
	c := NewChart(threeQuarters(), true, testChartOptions)
	assert.Equal(t, LinePatch{
		ShowLines: true,
		Series: []SeriesPatch{
			{Name: ActualLabel, LineStyle: LineStylePatch{Width: 2, Opacity: 1}},
			{Name: EstimateLabel, LineStyle: LineStylePatch{Width: 2, Opacity: 1}},
		},
	}, c.LinePatch())

	c.Toggle()
	p := c.LinePatch()
	assert.False(t, p.ShowLines)
	for _, s := range p.Series {
		assert.Equal(t, LineStylePatch{Width: 0, Opacity: 0}, s.LineStyle)
	}
}

func TestSnippetAndStandalone(t *testing.T) {
	c := NewChart(threeQuarters(), true, testChartOptions)
	s := c.Snippet()
	assert.Contains(t, string(s.Element), `id="earningsChart"`)
	assert.Contains(t, string(s.Script), "goecharts_earningsChart")
	assert.Contains(t, string(c.Standalone()), "echarts.min.js")
}

func TestEscapeScriptBody(t *testing.T) {
	in := `<script type="text/javascript">let o = {"a":"</script><b>&"};</script>`
	assert.Equal(t,
		`<script type="text/javascript">let o = {"a":"\u003c/script\u003e\u003cb\u003e\u0026"};</script>`,
		escapeScriptBody(in))
}
