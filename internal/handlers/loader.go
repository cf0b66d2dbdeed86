package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed assets/owl-widget.js
var loaderScript []byte

// LoaderScript serves the browser entry point that defines
// window.OwlWidget.mount.
func LoaderScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(loaderScript)
}
