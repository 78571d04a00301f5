package event

import (
	"bytes"
	"html/template"

	appLog "eventcal/internal/log"
)

// RenderFunc turns a record into an HTML fragment. Calendars may inject
// their own to show pass-through columns.
type RenderFunc func(r *Record) template.HTML

var recordTemplate = template.Must(template.New("event").Parse(
	`<article class="event" aria-label="{{.Name}}">` +
		`<h3 class="event-name">{{.Name}}</h3>` +
		`{{if .Start}}<p class="event-time"><time>{{.Start}}</time>{{if .End}} &ndash; <time>{{.End}}</time>{{end}}</p>{{end}}` +
		`{{if .Location}}<p class="event-location">{{.Location}}</p>{{end}}` +
		`{{if .Sponsor}}<p class="event-sponsor">{{.Sponsor}}</p>{{end}}` +
		`{{if .About}}<p class="event-about">{{.About}}</p>{{end}}` +
		`</article>`))

// DefaultRender is the built-in event fragment.
func DefaultRender(r *Record) template.HTML {
	var buf bytes.Buffer
	if err := recordTemplate.Execute(&buf, r); err != nil {
		appLog.Error("event render failed", err, "name", r.Name, "date", r.Date)
		return ""
	}
	return template.HTML(buf.String())
}

// HTML renders the record with its configured RenderFunc.
func (r *Record) HTML() template.HTML {
	return r.render(r)
}
