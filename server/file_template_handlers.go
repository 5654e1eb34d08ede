package server

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/pkg/errors"
)

//go:embed templates/*
var templateFiles embed.FS

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(templateFiles, "templates/"+name)
	if err != nil {
		return nil, errors.Wrapf(err, "[ParseTemplate] read %s", name)
	}
	return template.New(name).Parse(string(content))
}
