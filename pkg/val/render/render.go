package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/komsit37/val/pkg/val/types"
)

// Renderer renders analysis results to an output writer.
type Renderer interface {
	Render(w io.Writer, results []*types.AnalysisResult, opts RenderOptions) error
}

type RenderOptions struct {
	Columns     []string
	Color       bool
	PrettyJSON  bool
	MaxColWidth int
}

// Formats lists the names accepted by ForFormat.
var Formats = []string{"table", "markdown", "json", "line", "chart"}

// ForFormat returns the renderer for a --format value.
func ForFormat(name string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "table":
		return NewTableRenderer(), nil
	case "markdown", "md":
		return NewMarkdownRenderer(), nil
	case "json":
		return NewJSONRenderer(), nil
	case "line":
		return NewLineRenderer(), nil
	case "chart", "png":
		return NewChartRenderer(), nil
	}
	return nil, fmt.Errorf("unknown format %q (available: %s)", name, strings.Join(Formats, ", "))
}
