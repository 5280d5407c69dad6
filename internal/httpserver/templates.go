package httpserver

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/shopspring/decimal"

	"yogurt-storefront/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templateFuncs = template.FuncMap{
	"money":       money,
	"inc":         func(n int) int { return min(n+1, domain.MaxQuantity) },
	"dec":         func(n int) int { return n - 1 },
	"maxQuantity": func() int { return domain.MaxQuantity },
}

func loadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

func staticFiles() (http.FileSystem, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static files: %w", err)
	}
	return http.FS(sub), nil
}

// money formats an amount with two fraction digits.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
