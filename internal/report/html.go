package report

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/helvemed/meddiff/internal/model"
)

type htmlSection struct {
	ID         string
	Title      string
	Flag       int
	ShowOldNew bool
	ShowPrices bool
	Rows       []model.ChangeRecord
}

type htmlView struct {
	GeneratedOn        string
	PriceSource        string
	RegistrationSource string
	Sections           []htmlSection
}

// sectionSpecs fixes the report section order. New and deleted packages show
// their effective prices instead of an old/new pair; price direction sections
// are split by field so retail and ex-factory movements read separately.
var sectionSpecs = []struct {
	id, title  string
	flag       int
	field      string
	showOldNew bool
	showPrices bool
}{
	{"new", "New packages", 1, "", false, true},
	{"deleted", "Deleted packages", 14, "", false, true},
	{"sl-add", "SL entry additions", 10, "", false, false},
	{"sl-del", "SL entry deletions", 2, "", false, false},
	{"name", "Name changes", 3, "", true, false},
	{"owner", "Owner changes", 4, "", true, false},
	{"category", "Category changes", 5, "", true, false},
	{"composition", "Composition changes", 6, "", true, false},
	{"indication", "Indication changes", 7, "", true, false},
	{"sequence", "Trade form changes", 8, "", true, false},
	{"expiry", "Expiry date changes", 9, "", true, false},
	{"retail-up", "Retail price increases", 13, model.FieldRetailPrice, true, false},
	{"retail-down", "Retail price decreases", 15, model.FieldRetailPrice, true, false},
	{"exfactory-up", "Ex-factory price increases", 13, model.FieldExFactoryPrice, true, false},
	{"exfactory-down", "Ex-factory price decreases", 15, model.FieldExFactoryPrice, true, false},
}

// WriteHTML renders the merged report as a styled page with a summary table
// and table of contents. Purely a presentation transform; the JSON report
// stays the machine-readable source of truth.
func WriteHTML(path string, r *model.MergedReport) error {
	view := htmlView{
		GeneratedOn:        r.GeneratedOn,
		PriceSource:        r.PriceSource,
		RegistrationSource: r.RegistrationSource,
	}

	for _, spec := range sectionSpecs {
		sec := htmlSection{ID: spec.id, Title: spec.title, Flag: spec.flag, ShowOldNew: spec.showOldNew, ShowPrices: spec.showPrices}
		for _, entry := range r.Entries {
			for _, c := range entry.Changes {
				if c.Flag != spec.flag {
					continue
				}
				if spec.field != "" && c.Field != spec.field {
					continue
				}
				sec.Rows = append(sec.Rows, c)
			}
		}
		if len(sec.Rows) > 0 {
			view.Sections = append(view.Sections, sec)
		}
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, view); err != nil {
		return eris.Wrap(err, "report: render html")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create dir %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "report: write html %s", path)
	}
	return nil
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Pharma Diff Report – {{.GeneratedOn}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 2em; color: #24292e; }
h1 { border-bottom: 2px solid #e1e4e8; padding-bottom: .3em; }
h2 { margin-top: 2em; color: #0366d6; }
table { border-collapse: collapse; width: 100%; margin: .5em 0 1.5em; font-size: 0.92em; }
th, td { border: 1px solid #d1d5da; padding: 6px 10px; text-align: left; vertical-align: top; }
th { background: #f6f8fa; font-weight: 600; }
.old { color: #b31d28; text-decoration: line-through; }
.new { color: #22863a; font-weight: 500; }
.gtin { font-family: monospace; white-space: nowrap; }
.summary td:last-child { text-align: right; font-weight: 600; }
.toc { background: #f6f8fa; padding: 1em 1.5em; border-radius: 6px; margin-bottom: 2em; }
.toc a { text-decoration: none; color: #0366d6; }
</style>
</head>
<body>
<h1>Pharma Diff Report – {{.GeneratedOn}}</h1>
<p>Price source: {{.PriceSource}} · Registration source: {{.RegistrationSource}}</p>

<div class="toc"><strong>Contents</strong>
<ul>
<li><a href="#summary">Summary</a></li>
{{range .Sections}}<li><a href="#{{.ID}}">{{.Title}}</a></li>
{{end}}</ul>
</div>

<h2 id="summary">Summary</h2>
<table class="summary">
<tr><th>Flag</th><th>Category</th><th>Count</th></tr>
{{range .Sections}}<tr><td>{{.Flag}}</td><td>{{.Title}}</td><td>{{len .Rows}}</td></tr>
{{end}}</table>

{{range .Sections}}
<h2 id="{{.ID}}">{{.Title}} ({{len .Rows}})</h2>
<table>
{{if .ShowOldNew}}<tr><th>GTIN</th><th>Name</th><th>Old</th><th>New</th></tr>
{{range .Rows}}<tr><td class="gtin">{{.GTIN}}</td><td>{{.Name}}</td><td class="old">{{.Old}}</td><td class="new">{{.New}}</td></tr>
{{end}}{{else if .ShowPrices}}<tr><th>GTIN</th><th>Name</th><th>Retail</th><th>Ex-factory</th></tr>
{{range .Rows}}<tr><td class="gtin">{{.GTIN}}</td><td>{{.Name}}</td><td>{{.Retail}}</td><td>{{.ExFactory}}</td></tr>
{{end}}{{else}}<tr><th>GTIN</th><th>Name</th></tr>
{{range .Rows}}<tr><td class="gtin">{{.GTIN}}</td><td>{{.Name}}</td></tr>
{{end}}{{end}}</table>
{{end}}
</body>
</html>
`))
