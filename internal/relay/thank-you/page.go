package thankyou

import (
	"bytes"
	"html/template"
)

var pageTemplate = template.Must(template.New("thank-you").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Thank you</title>
</head>
<body>
<div id="graphwise-thankyou">
{{- if .Found}}
<h2>Thank you, {{.FirstName}} {{.LastName}}!</h2><p>We’ve sent a confirmation to <strong>{{.Email}}</strong>.</p>
{{- else}}
<p>Thank you! (No user data found)</p>
{{- end}}
</div>
</body>
</html>
`))

// PageData is what the thank-you page shows.
type PageData struct {
	Found     bool
	FirstName string
	LastName  string
	Email     string
}

func render(data PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
