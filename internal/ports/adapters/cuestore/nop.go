package cuestore

import (
	"context"

	"github.com/forPelevin/lipsync/internal/types"
)

// Nop never stores anything; every Get is a miss.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]types.MouthCue, error) { return nil, types.ErrCacheMiss }

func (Nop) Put(context.Context, string, []types.MouthCue) error { return nil }

func (Nop) Close() error { return nil }
