package widget

import "strings"

// html.EscapeString also rewrites quotes; the panel only ever places text as
// element content, so only the three markup characters are replaced.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML replaces &, < and > with their entities. It does not escape
// quotes and is not safe for attribute values.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
