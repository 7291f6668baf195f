package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epschart/earnings"
)

func renderDoc(t *testing.T, data PageData) (*goquery.Document, string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WritePage(&buf, data))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(buf.String()))
	require.NoError(t, err)
	return doc, buf.String()
}

func tableText(doc *goquery.Document) [][]string {
	var out [][]string
	doc.Find("#earningsTable tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		out = append(out, cells)
	})
	return out
}

func TestPageHidesControlsBeforeFirstRender(t *testing.T) {
	doc, html := renderDoc(t, PageData{})

	assert.True(t, doc.Find("#toggleButtonContainer").HasClass("hidden"))
	assert.True(t, doc.Find("#earningsTable").HasClass("hidden"))
	assert.Empty(t, tableText(doc))
	assert.NotContains(t, html, "alert(")
	assert.Equal(t, 1, doc.Find("#ticker").Length())
	assert.Equal(t, 1, doc.Find("#customKey").Length())
}

func TestPageShowsChartAndTable(t *testing.T) {
	series := exampleSeries()
	chart := NewChart(series, true, testChartOptions)
	snippet := chart.Snippet()

	doc, _ := renderDoc(t, PageData{
		Ticker:    "IBM",
		Chart:     &snippet,
		ShowLines: true,
		Visible:   true,
		Rows:      Rows(series),
	})

	assert.False(t, doc.Find("#toggleButtonContainer").HasClass("hidden"))
	assert.False(t, doc.Find("#earningsTable").HasClass("hidden"))
	assert.Equal(t, 1, doc.Find("#"+ChartID).Length())
	assert.Equal(t, "IBM", doc.Find("#ticker").AttrOr("value", ""))
	assert.Equal(t, [][]string{
		{"2023-06-30", "2023-07-20", "$1.50", "$1.40", "+$0.10", "+7%"},
	}, tableText(doc))
}

func TestPageRenderIsIdempotent(t *testing.T) {
	series := exampleSeries()
	build := func() string {
		snippet := NewChart(series, true, testChartOptions).Snippet()
		var buf bytes.Buffer
		require.NoError(t, WritePage(&buf, PageData{Chart: &snippet, Visible: true, Rows: Rows(series)}))
		return buf.String()
	}
	assert.Equal(t, build(), build())
}

func TestPageAlertIsEscaped(t *testing.T) {
	_, html := renderDoc(t, PageData{Alert: `Error: bad "symbol" </script>`})

	assert.Contains(t, html, "alert(")
	assert.NotContains(t, html, `bad "symbol" </script>`)
}

func TestPageEscapesTableCells(t *testing.T) {
	doc, html := renderDoc(t, PageData{Visible: true, Rows: []Row{{EndingDate: "<b>x</b>"}}})
	assert.NotContains(t, html, "<b>x</b>")
	assert.Equal(t, "<b>x</b>", tableText(doc)[0][0])
}

func TestPageEscapesChartData(t *testing.T) {
	const payload = `</script><img src=x onerror=alert(1)>`
	series := earnings.Normalize("X", []earnings.Record{
		{FiscalDateEnding: payload, ReportedDate: "2023-07-20", ReportedEPS: nd("1.5")},
	})
	chart := NewChart(series, true, testChartOptions)
	snippet := chart.Snippet()

	doc, html := renderDoc(t, PageData{Chart: &snippet, Visible: true, Rows: Rows(series)})

	assert.NotContains(t, html, payload)
	assert.Zero(t, doc.Find("img").Length())
	assert.Contains(t, string(snippet.Script), `\u003c/script\u003e\u003cimg src=x onerror=alert(1)\u003e`)
	assert.Equal(t, payload, tableText(doc)[0][0])

	standalone := string(chart.Standalone())
	assert.NotContains(t, standalone, payload)
	assert.Equal(t, 1, strings.Count(standalone, "goecharts_earningsChart.setOption"))
}
