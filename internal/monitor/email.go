package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"case-monitoring/internal/domain/notifications"
)

// filingPayload es el payload estructurado que guardamos en la fila de
// notificación; alcanza para re-renderizar el email en el retry sweep.
type filingPayload struct {
	DocketID    string    `json:"docket_id"`
	CaseName    string    `json:"case_name"`
	DocumentID  string    `json:"document_id"`
	Description string    `json:"description"`
	URL         string    `json:"url,omitempty"`
	DateFiled   time.Time `json:"date_filed"`
}

var filingTmpl = template.Must(template.New("new_filing").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>New court filing</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h2>New filing in {{.CaseName}}</h2>
  <p>A new document was filed on docket <strong>{{.DocketID}}</strong>:</p>
  <blockquote>{{.Description}}</blockquote>
  <p>Filed: {{.DateFiled.Format "Jan 2, 2006"}}</p>
  {{if .URL}}<p><a href="{{.URL}}">View document</a></p>{{end}}
  <hr>
  <p style="font-size: 12px; color: #777;">
    You are receiving this because case monitoring is enabled for this case.
    Manage notifications from your dashboard.
  </p>
</body>
</html>
`))

// renderFilingEmail arma subject + HTML + texto plano desde la fila grabada.
// Si el payload estructurado no está (fila vieja o data sucia) degrada a
// título + descripción.
func renderFilingEmail(e notifications.Event) (subject, html, text string, err error) {
	var p filingPayload
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &p); err != nil {
			p = filingPayload{}
		}
	}
	if p.CaseName == "" {
		p.CaseName = e.Title
	}
	if p.Description == "" {
		p.Description = e.Description
	}
	if p.DateFiled.IsZero() {
		p.DateFiled = e.EventDate
	}

	subject = fmt.Sprintf("New filing: %s", p.CaseName)

	var buf bytes.Buffer
	if err := filingTmpl.Execute(&buf, p); err != nil {
		return "", "", "", err
	}

	text = fmt.Sprintf("New filing in %s\n\n%s\nFiled: %s\n",
		p.CaseName, p.Description, p.DateFiled.Format("Jan 2, 2006"))
	if p.URL != "" {
		text += p.URL + "\n"
	}

	return subject, buf.String(), text, nil
}
