package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"
)

// PDFRenderClient is the subset of the Gotenberg client used for exports.
type PDFRenderClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

var pdfTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"cell": func(f Formatter, c Cell) string {
		if c.IsAmount {
			return f.Amount(c.Amount)
		}
		return c.Text
	},
	"total": func(f Formatter, c Cell) string {
		if c.IsAmount {
			return f.Money(c.Amount)
		}
		return c.Text
	},
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Doc.Title}}</title>
<style>
body{font-family:sans-serif;margin:24px;font-size:12px;}
h1{font-size:18px;margin:0;}h2{font-size:14px;margin:16px 0 6px;}
.meta{color:#555;margin:4px 0 16px;}
table{width:100%;border-collapse:collapse;margin-bottom:12px;}
th,td{border:1px solid #ddd;padding:4px 6px;}
th{background:#f5f5f5;text-align:left;}
td.num{text-align:right;}
tr.total td{font-weight:bold;background:#fafafa;}
</style></head><body>
<h1>{{.Company}}</h1>
<h2>{{.Doc.Title}}</h2>
<p class="meta">{{.Doc.Period}} &middot; {{.Currency}} &middot; generated {{.Generated}}</p>
{{range .Doc.Sections}}
<section>{{if .Title}}<h2>{{.Title}}</h2>{{end}}
<table><thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead><tbody>
{{range .Rows}}<tr>{{range .}}<td{{if .IsAmount}} class="num"{{end}}>{{cell $.Fmt .}}</td>{{end}}</tr>
{{end}}{{if .Totals}}<tr class="total">{{range .Totals}}<td{{if .IsAmount}} class="num"{{end}}>{{total $.Fmt .}}</td>{{end}}</tr>{{end}}
</tbody></table></section>
{{end}}
{{range .Doc.Notes}}<p>{{.}}</p>{{end}}
</body></html>`))

// HTML renders the document as a standalone page.
func HTML(doc Document, company string, f Formatter, generated time.Time) (string, error) {
	var buf bytes.Buffer
	err := pdfTemplate.Execute(&buf, struct {
		Doc       Document
		Company   string
		Currency  string
		Generated string
		Fmt       Formatter
	}{
		Doc:       doc,
		Company:   company,
		Currency:  f.Currency(),
		Generated: generated.UTC().Format("2006-01-02 15:04 MST"),
		Fmt:       f,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Exporter renders report documents to PDF or Excel.
type Exporter struct {
	client  PDFRenderClient
	format  Formatter
	company string
	now     func() time.Time
}

// NewExporter builds an Exporter. client may be nil, which disables PDF output.
func NewExporter(client PDFRenderClient, format Formatter, company string) *Exporter {
	return &Exporter{client: client, format: format, company: company, now: time.Now}
}

// ErrPDFUnavailable is returned when no PDF renderer is configured.
var ErrPDFUnavailable = errors.New("export: pdf renderer unavailable")

// PDF renders doc through Gotenberg.
func (e *Exporter) PDF(ctx context.Context, doc Document) ([]byte, error) {
	if e == nil || e.client == nil {
		return nil, ErrPDFUnavailable
	}
	html, err := HTML(doc, e.company, e.format, e.now())
	if err != nil {
		return nil, fmt.Errorf("pdf template: %w", err)
	}
	return e.client.RenderHTML(ctx, html)
}

// Excel renders doc as an xlsx workbook.
func (e *Exporter) Excel(doc Document) ([]byte, error) {
	return Excel(doc)
}

// Filename builds the download name, e.g. trial-balance-20250131.pdf.
func (e *Exporter) Filename(doc Document, ext string) string {
	now := time.Now
	if e != nil && e.now != nil {
		now = e.now
	}
	return fmt.Sprintf("%s-%s.%s", doc.Name, now().UTC().Format("20060102"), ext)
}
