package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yeoul-labs/alimguard-backend/internal/domain/template"
)

// Rendered is a template with every variable substituted, the shape the
// message takes on the wire.
type Rendered struct {
	Body       string
	Title      string
	ButtonURLs []string
	// Missing lists placeholders referenced in the body with no sample
	// value to substitute.
	Missing []string
}

// Render substitutes variables into body, title and button links.
// Placeholders without a sample value are left in place and reported.
func Render(t *template.Template) Rendered {
	sub := func(text string) string {
		for name, value := range t.Variables {
			text = strings.ReplaceAll(text, "#{"+name+"}", value)
		}
		return text
	}

	r := Rendered{
		Body:  sub(t.Body),
		Title: sub(t.Title),
	}
	for _, b := range t.Buttons {
		for _, link := range []string{b.LinkMobile, b.LinkPC} {
			if link != "" {
				r.ButtonURLs = append(r.ButtonURLs, sub(link))
			}
		}
	}
	r.Missing = template.Placeholders(r.Body)
	return r
}

// checkURL reports why a URL is unusable, or nil.
func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("URL 형식이 올바르지 않습니다: %s", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL은 http 또는 https로 시작해야 합니다: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL에 도메인이 없습니다: %s", raw)
	}
	return nil
}
