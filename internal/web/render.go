// Package web holds what the HTML-serving handlers share: the base page
// fields every template expects, and the helper that renders a page
// template inside the base layout.
package web

import (
	"html/template"
	"log"
	"net/http"
	"time"
)

const templateDir = "web/templates"

// PageData carries the fields base.html reads. Handlers embed it in
// their page-specific data structs.
type PageData struct {
	Title    string
	ShowNav  bool
	Username string
	Success  string
	Error    string
}

// Render parses the base layout together with the named page template
// and executes them into the response.
func Render(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	tmpl := template.New("").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 3:04 PM")
		},
	})

	tmpl, err := tmpl.ParseFiles(templateDir+"/base.html", templateDir+"/"+templateName)
	if err != nil {
		log.Printf("Template parsing error for %s: %v", templateName, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Template execution error for %s: %v", templateName, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
