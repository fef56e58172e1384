package reporting

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"time"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

var htmlFuncs = template.FuncMap{
	"duration": func(d time.Duration) string { return d.Round(time.Millisecond).String() },
	"stamp":    func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"base":     filepath.Base,
}

var reportTemplate = template.Must(template.New("report").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>regprobe run {{.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.passed { color: #1a7f37; }
.failed { color: #cf222e; }
.running { color: #9a6700; }
</style>
</head>
<body>
<h1>Registration workflow run</h1>
<p id="meta">Target <code>{{.Metadata.BaseURL}}</code>, headless {{.Metadata.Headless}}, CI {{.Metadata.CI}}. Started {{stamp .Start}}, took {{duration .Duration}}.</p>
<table id="totals">
<tr><th>Total</th><th>Passed</th><th>Failed</th></tr>
<tr><td>{{.Totals.Total}}</td><td class="passed">{{.Totals.Passed}}</td><td class="failed">{{.Totals.Failed}}</td></tr>
</table>
{{range .Cases}}
<section class="case" data-status="{{.Status}}">
<h2>{{.Name}} <span class="{{.Status}}">{{.Status}}</span></h2>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<table class="steps">
<tr><th>Step</th><th>Status</th><th>Duration</th><th>Detail</th></tr>
{{range .Steps}}<tr><td>{{.Name}}</td><td class="{{.Status}}">{{.Status}}</td><td>{{duration .Duration}}</td><td>{{if .Error}}{{.Error}}{{else}}{{.Result}}{{end}}</td></tr>
{{end}}</table>
{{if .Screenshot}}<p><a class="screenshot" href="screenshots/{{base .Screenshot}}">screenshot</a></p>{{end}}
</section>
{{else}}
<p>No cases were recorded.</p>
{{end}}
</body>
</html>
`))

// RenderHTML writes a self-contained HTML report. Screenshot links are
// relative to the artifact directory.
func RenderHTML(w io.Writer, run recorder.RunRecord) error {
	if err := reportTemplate.Execute(w, run); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}
