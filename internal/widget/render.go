package widget

import (
	"strconv"
	"strings"

	"owl-widget/internal/models"
)

const (
	panelStyle  = "position:fixed;bottom:20px;right:20px;width:320px;height:420px;background:#fff;border:1px solid #ddd;border-radius:8px;box-shadow:0 2px 12px rgba(0,0,0,.1);display:flex;flex-direction:column;overflow:hidden;font-family:sans-serif;z-index:99999"
	headerStyle = "padding:.5rem;background:#111;color:#fff"
	logStyle    = "flex:1;padding:.5rem;overflow:auto"
	entryStyle  = "margin:6px 0"
)

// View is everything Render needs. It carries no behaviour.
type View struct {
	ID       string
	Title    string
	Messages []models.Message
	Pending  int
}

// Render turns a view into the panel's HTML fragment. Message text is always
// passed through EscapeHTML; the author label is one of the fixed names.
func Render(v View) string {
	title := v.Title
	if title == "" {
		title = DefaultTitle
	}

	var b strings.Builder
	b.WriteString(`<div class="owl-widget" data-owl-widget="`)
	b.WriteString(v.ID)
	b.WriteString(`" style="` + panelStyle + `">`)
	b.WriteString(`<div style="` + headerStyle + `">`)
	b.WriteString(EscapeHTML(title))
	b.WriteString(`</div>`)

	b.WriteString(`<div class="owl-log" style="` + logStyle + `"`)
	if v.Pending > 0 {
		b.WriteString(` data-pending="`)
		b.WriteString(strconv.Itoa(v.Pending))
		b.WriteString(`"`)
	}
	b.WriteString(`>`)
	for _, m := range v.Messages {
		b.WriteString(RenderEntry(m))
	}
	b.WriteString(`</div>`)

	b.WriteString(`<div style="display:flex;padding:.5rem;gap:.25rem">`)
	b.WriteString(`<input class="owl-input" style="flex:1;padding:.5rem" placeholder="Ask..."/>`)
	b.WriteString(`<button class="owl-send">Send</button>`)
	b.WriteString(`</div></div>`)
	return b.String()
}

// RenderEntry renders a single log line.
func RenderEntry(m models.Message) string {
	return `<div style="` + entryStyle + `"><strong>` + m.Author + `:</strong> ` + EscapeHTML(m.Text) + `</div>`
}
