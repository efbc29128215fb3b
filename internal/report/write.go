package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/rival/internal/model"
)

type view struct {
	Summary
	Report *model.Report
}

func newView(rep *model.Report) view {
	return view{Summary: GenerateSummary(rep.Collection), Report: rep}
}

var funcs = map[string]any{
	"join": strings.Join,
	"ts": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05")
	},
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

const textTmpl = `Rival Market Report: {{.Query}}
------------------
Request:       {{.RequestID}}
Collected:     {{ts .CollectedAt}}
Search items:  {{.SearchItems}}{{if .SearchFromCache}} (cached){{end}}{{if .AnalysisUnavailable}}, {{.AnalysisUnavailable}} without analysis{{end}}
{{- if .SearchError}}
Search error:  {{.SearchError}}
{{- end}}
Competitors:   {{.Competitors}} ({{.CompetitorsCached}} cached, {{.CompetitorsFresh}} new, {{.CompetitorsFailed}} failed)
{{- with .LastCacheUpdate}}
Cache update:  {{ts .}}
{{- end}}

Search Results:
{{- range .Report.Collection.SearchItems}}
  [{{.Provenance.Source}}] {{.Title}}
      {{.URL}}
      {{.Analysis}}
{{- else}}
  None
{{- end}}

Competitors:
{{- range .Report.Collection.CompetitorItems}}
  [{{.Provenance.Source}}] {{.Identifier}} ({{.Status}})
{{- if .OK}}
      Website:  {{.Website}}
      Industry: {{.Profile.CompanyInfo.Industry}}
      Features: {{join .Profile.ProductService.Features ", "}}
{{- else}}
      Error:    {{.Error}}
{{- end}}
{{- else}}
  None
{{- end}}

SWOT:
  Strengths:     {{join .Report.SWOT.Strengths "; "}}
  Weaknesses:    {{join .Report.SWOT.Weaknesses "; "}}
  Opportunities: {{join .Report.SWOT.Opportunities "; "}}
  Threats:       {{join .Report.SWOT.Threats "; "}}
{{- with .Report.Comparison}}

Comparison:
  Advantages:    {{join .CompetitiveAdvantages "; "}}
  Disadvantages: {{join .CompetitiveDisadvantages "; "}}
{{- end}}
`

var textReport = template.Must(template.New("textReport").Funcs(funcs).Parse(textTmpl))

// WriteText writes a human-readable report.
func WriteText(w io.Writer, rep *model.Report) error {
	if err := textReport.Execute(w, newView(rep)); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Rival Report: {{.Query}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; vertical-align: top; }
  th { background: #eaeaea; }
  .src-error { color: #b00; }
  .src-cached { color: #666; }
</style>
</head>
<body>
  <h1>Rival Report: {{.Query}}</h1>
  <p><strong>Collected:</strong> {{ts .CollectedAt}} &middot; <strong>Request:</strong> {{.RequestID}}</p>

  <div class="stat-card">
    <div>Search Items</div>
    <div class="stat-val">{{.SearchItems}}</div>
  </div>
  <div class="stat-card">
    <div>Competitors</div>
    <div class="stat-val">{{.Competitors}}</div>
  </div>
  <div class="stat-card">
    <div>From Cache</div>
    <div class="stat-val">{{.CompetitorsCached}}</div>
  </div>
  <div class="stat-card">
    <div>Failed</div>
    <div class="stat-val" style="color: {{if gt .CompetitorsFailed 0}}red{{else}}green{{end}};">{{.CompetitorsFailed}}</div>
  </div>
  {{- if .SearchError}}
  <p class="src-error"><strong>Search error:</strong> {{.SearchError}}</p>
  {{- end}}

  <h3>Search Results</h3>
  <table>
    <tr><th>Source</th><th>Title</th><th>Analysis</th></tr>
    {{- range .Report.Collection.SearchItems}}
    <tr><td class="src-{{.Provenance.Source}}">{{.Provenance.Source}}</td><td><a href="{{.URL}}">{{.Title}}</a></td><td>{{.Analysis}}</td></tr>
    {{- else}}
    <tr><td colspan="3">None</td></tr>
    {{- end}}
  </table>

  <h3>Competitors</h3>
  <table>
    <tr><th>Source</th><th>Competitor</th><th>Status</th><th>Industry</th><th>Features</th></tr>
    {{- range .Report.Collection.CompetitorItems}}
    <tr><td class="src-{{.Provenance.Source}}">{{.Provenance.Source}}</td><td>{{.Identifier}}</td><td>{{.Status}}</td><td>{{.Profile.CompanyInfo.Industry}}</td><td>{{join .Profile.ProductService.Features ", "}}</td></tr>
    {{- else}}
    <tr><td colspan="5">None</td></tr>
    {{- end}}
  </table>

  <h3>SWOT</h3>
  <table>
    <tr><th>Strengths</th><td>{{join .Report.SWOT.Strengths "; "}}</td></tr>
    <tr><th>Weaknesses</th><td>{{join .Report.SWOT.Weaknesses "; "}}</td></tr>
    <tr><th>Opportunities</th><td>{{join .Report.SWOT.Opportunities "; "}}</td></tr>
    <tr><th>Threats</th><td>{{join .Report.SWOT.Threats "; "}}</td></tr>
  </table>
  {{- with .Report.Comparison}}

  <h3>Comparison</h3>
  <table>
    <tr><th>Advantages</th><td>{{join .CompetitiveAdvantages "; "}}</td></tr>
    <tr><th>Disadvantages</th><td>{{join .CompetitiveDisadvantages "; "}}</td></tr>
  </table>
  {{- end}}
</body>
</html>
`

var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Funcs(htmltemplate.FuncMap(funcs)).Parse(htmlTmpl))

// WriteHTML writes a standalone HTML report. Collected text is escaped.
func WriteHTML(w io.Writer, rep *model.Report) error {
	if err := htmlReport.Execute(w, newView(rep)); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

var csvHeaders = []string{"kind", "name", "url", "status", "source", "last_updated", "detail"}

// WriteCSV writes one row per search item and per competitor.
func WriteCSV(w io.Writer, res *model.CollectionResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, it := range res.SearchItems {
		row := []string{"search", it.Title, it.URL, string(it.Status), string(it.Provenance.Source), it.Provenance.LastUpdated.UTC().Format(time.RFC3339), it.Analysis}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	for _, c := range res.CompetitorItems {
		detail := c.Error
		if c.OK() {
			detail = c.Profile.CompanyInfo.Industry
		}
		row := []string{"competitor", c.Identifier, c.Website, string(c.Status), string(c.Provenance.Source), c.Provenance.LastUpdated.UTC().Format(time.RFC3339), detail}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
