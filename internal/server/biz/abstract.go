package biz

import (
	"context"

	"github.com/looplj/authcore/internal/store"
)

type AbstractService struct {
	store *store.Store
}

func (a *AbstractService) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return a.store.RunInTransaction(ctx, fn)
}
