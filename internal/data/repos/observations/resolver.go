package observations

import (
	"context"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
)

type parentResolver struct {
	parents ParentRecordRepo
}

// NewParentResolver adapts a ParentRecordRepo to types.Resolver.
func NewParentResolver(parents ParentRecordRepo) types.Resolver {
	return &parentResolver{parents: parents}
}

func (p *parentResolver) Resolve(ctx context.Context, t types.ParentType, reference string) (types.ParentHandle, error) {
	return p.parents.Get(dbctx.New(ctx), t, reference)
}
