// Package render turns a signature template's blocks into final HTML using
// the Liquid template language for per-user personalization.
package render

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/stampworks/sigforge/internal/domain"
)

// Renderer renders signature templates with parse caching. Safe for
// concurrent use.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template keyed by template id + block index
}

// NewRenderer creates a renderer with the signature-specific Liquid filters
// registered.
func NewRenderer() *Renderer {
	r := &Renderer{engine: liquid.NewEngine()}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// Fallback value: {{ title | default: "" }}
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// HTML escape for user-entered profile fields: {{ quote | escape }}
	r.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// URL encode: {{ booking_link | urlencode }}
	r.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// Clickable phone link: {{ phone | tel_href }}
	r.engine.RegisterFilter("tel_href", func(s string) string {
		keep := strings.Builder{}
		for _, c := range s {
			if c == '+' || (c >= '0' && c <= '9') {
				keep.WriteRune(c)
			}
		}
		return "tel:" + keep.String()
	})

	// Avatar fallback text: {{ display_name | initials }}
	r.engine.RegisterFilter("initials", func(s string) string {
		out := strings.Builder{}
		for _, word := range strings.Fields(s) {
			runes := []rune(word)
			if len(runes) > 0 {
				out.WriteRune(runes[0])
			}
			if out.Len() >= 2 {
				break
			}
		}
		return strings.ToUpper(out.String())
	})
}

// Context builds the Liquid binding for one deployment target. Profile keys
// are exposed top-level so template authors write {{ title }}, not
// {{ profile.title }}.
func Context(target domain.DeploymentTarget) map[string]interface{} {
	binding := map[string]interface{}{
		"email":        target.Email,
		"display_name": target.DisplayName,
	}
	for k, v := range target.Profile {
		if _, taken := binding[k]; !taken {
			binding[k] = v
		}
	}
	return binding
}

// Render produces the final signature HTML for one target by rendering each
// block in order and concatenating the results. Well-formed templates never
// fail; a parse or render error on any block aborts with a wrapped error so
// the caller can record it as that target's failure.
func (r *Renderer) Render(tpl *domain.SignatureTemplate, target domain.DeploymentTarget) (string, error) {
	binding := Context(target)

	var out strings.Builder
	for i, block := range tpl.Blocks {
		compiled, err := r.compiled(fmt.Sprintf("%s/%d", tpl.ID, i), block.Source)
		if err != nil {
			return "", fmt.Errorf("parse block %d (%s): %w", i, block.Type, err)
		}
		rendered, err := compiled.RenderString(binding)
		if err != nil {
			return "", fmt.Errorf("render block %d (%s): %w", i, block.Type, err)
		}
		out.WriteString(rendered)
	}
	return out.String(), nil
}

// Validate parses every block and reports the first syntax error. Called at
// template save time so deployment-time renders only see well-formed input.
func (r *Renderer) Validate(tpl *domain.SignatureTemplate) error {
	for i, block := range tpl.Blocks {
		if _, err := r.engine.ParseString(block.Source); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, block.Type, err)
		}
	}
	return nil
}

// InvalidateTemplate drops cached parses for a template after an edit.
func (r *Renderer) InvalidateTemplate(tpl *domain.SignatureTemplate) {
	for i := range tpl.Blocks {
		r.cache.Delete(fmt.Sprintf("%s/%d", tpl.ID, i))
	}
}

func (r *Renderer) compiled(cacheKey, source string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(cacheKey); ok {
		return cached.(*liquid.Template), nil
	}
	compiled, err := r.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	r.cache.Store(cacheKey, compiled)
	return compiled, nil
}
