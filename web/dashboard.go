package web

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"

	"flexray/events"

	ds "github.com/starfederation/datastar-go/datastar"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>flexray live decode</title></head>
<body data-on-load="@get('/events')">
  <h1>flexray live decode</h1>
  <table>
    <thead><tr><th>packet</th><th>field</th><th>data1</th><th>data2</th><th>flags</th><th>start</th><th>end</th></tr></thead>
    <tbody><tr id="record-tail"></tr></tbody>
  </table>
</body>
</html>`))

// rowTemplate renders the newest record followed by a fresh empty
// record-tail row. Patching this over the existing record-tail row (by
// id, the default morph target for PatchElements) both inserts the new
// row and re-creates the anchor the next patch will target, giving an
// append-only table without tracking per-client scroll state.
var rowTemplate = template.Must(template.New("row").Funcs(template.FuncMap{
	"flagsLabel": buildFlagsLabel,
}).Parse(
	`<tr><td>{{.PacketID}}</td><td>{{.Kind}}</td><td>{{.Data1}}</td><td>{{.Data2}}</td><td>{{flagsLabel .Flags}}</td><td>{{.StartSample}}</td><td>{{.EndSample}}</td></tr><tr id="record-tail"></tr>`,
))

// Dashboard renders the index page and streams events.Records from hub
// over SSE, one Datastar patch per record.
type Dashboard struct {
	hub *events.Hub
}

// NewDashboard returns a Dashboard tailing hub.
func NewDashboard(hub *events.Hub) *Dashboard {
	return &Dashboard{hub: hub}
}

// IndexHandler serves the dashboard shell.
func (d *Dashboard) IndexHandler(w http.ResponseWriter, _ *http.Request) {
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Printf("web: render index: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// EventsHandler streams hub's records to the client as they're broadcast,
// until the client disconnects.
func (d *Dashboard) EventsHandler(w http.ResponseWriter, r *http.Request) {
	_ = getClientID(w, r)
	sse := ds.NewSSE(w, r)

	_, ch, cancel := d.hub.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-ch:
			if !ok {
				return
			}
			var buf strings.Builder
			if err := rowTemplate.Execute(&buf, record); err != nil {
				log.Printf("web: render row: %s", err)
				continue
			}
			if err := sse.PatchElements(buf.String()); err != nil {
				return
			}
		}
	}
}

// buildFlagsLabel renders a human-readable label for a record's error
// flags, used by templates that want more than the raw bitmask.
func buildFlagsLabel(flags uint8) string {
	if flags == 0 {
		return "ok"
	}
	return fmt.Sprintf("0x%02X", flags)
}
