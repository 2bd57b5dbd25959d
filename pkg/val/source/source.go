package source

import (
	"context"

	"github.com/komsit37/val/pkg/val/types"
)

// Source loads ticker lists from a specification (e.g., a file or directory path).
type Source interface {
	Load(ctx context.Context, spec any) ([]types.TickerList, error)
}
