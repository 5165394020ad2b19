// Package web holds the HTML templates rendered by the upload page.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templates embed.FS

// Templates returns the template directory as an http.FileSystem rooted at
// templates/, so views are addressed by bare name ("index").
func Templates() http.FileSystem {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
