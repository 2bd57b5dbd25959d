package render

import (
	"encoding/json"
	"io"

	"github.com/komsit37/val/pkg/val/types"
)

// jsonModel is the output shape for JSONRenderer.
type jsonModel struct {
	Count   int                     `json:"count"`
	Results []*types.AnalysisResult `json:"results"`
}

type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer { return &JSONRenderer{} }

func (r *JSONRenderer) Render(w io.Writer, results []*types.AnalysisResult, opts RenderOptions) error {
	out := jsonModel{Results: make([]*types.AnalysisResult, 0, len(results))}
	for _, res := range results {
		if res != nil {
			out.Results = append(out.Results, res)
		}
	}
	out.Count = len(out.Results)
	enc := json.NewEncoder(w)
	if opts.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
