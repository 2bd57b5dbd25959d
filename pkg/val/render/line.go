package render

import (
	"fmt"
	"io"

	"github.com/komsit37/val/pkg/val/columns"
	"github.com/komsit37/val/pkg/val/types"
)

// lineRenderer prints one line per result, suitable for grep and watch.
type lineRenderer struct{}

func NewLineRenderer() Renderer {
	return lineRenderer{}
}

func (lineRenderer) Render(w io.Writer, results []*types.AnalysisResult, _ RenderOptions) error {
	for _, res := range results {
		if res == nil {
			continue
		}
		_, err := fmt.Fprintf(w, "%s price=%s fair=%s upside=%s growth=%s peers=%s\n",
			res.Ticker,
			columns.FormatFloat(res.Profile.Price, 2),
			columns.FormatFloat(res.FairValuePerShare, 2),
			columns.FormatPercent(res.Upside, 1),
			columns.FormatPercent(res.Growth, 2),
			symbols(res.Peers),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
