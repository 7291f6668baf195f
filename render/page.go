package render

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// PageData is everything the earnings page shows. The toggle control and
// the table stay hidden until Visible is set by a first successful render.
type PageData struct {
	Ticker     string
	AssetsHost string
	Chart      *Snippet
	ShowLines  bool
	Visible    bool
	Rows       []Row
	KeySaved   bool
	// Alert, when set, is raised once as a blocking browser alert.
	Alert string
}

type pageView struct {
	PageData
	ChartID template.JS
}

// WritePage renders the page. The table is written in full every time.
func WritePage(w io.Writer, data PageData) error {
	return pageTemplate.ExecuteTemplate(w, "page.html", pageView{PageData: data, ChartID: template.JS(ChartID)})
}
