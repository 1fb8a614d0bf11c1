package inject

import (
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"
)

// TagProvider produces the fragment to inject. It is called at most once per eligible
// response and may return an empty string to disable injection for that response.
type TagProvider func() string

// StaticTag returns a TagProvider that always produces s
func StaticTag(s string) TagProvider {
	return func() string {
		return s
	}
}

// TemplateTag returns a TagProvider that executes t with data on every call.
// The template is executed once up front and its error, if any, is returned.
// A later execution failure is logged at Error level and yields an empty fragment,
// so nothing is injected into that response.
func TemplateTag(t *template.Template, data any, logger *zap.Logger) (TagProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return nil, fmt.Errorf("execute tag template %q: %w", t.Name(), err)
	}

	return func() string {
		var sb strings.Builder
		if err := t.Execute(&sb, data); err != nil {
			logger.Error("Tag template failed",
				zap.String("template", t.Name()),
				zap.Error(err),
			)
			return ""
		}
		return sb.String()
	}, nil
}
