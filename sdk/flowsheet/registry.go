package flowsheet

import (
	"fmt"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/spec"
)

// Builder builds a Flowsheet instance bound to a sweep setting.
// It is invoked once per worker, so each worker owns an isolated model
// (Flowsheet implementations are not required to be concurrency-safe).
//
// The *core.Core carries the worker-local PRNG; builders that need random
// initial states must draw from it and nothing else, or reruns stop being
// reproducible.
type Builder func(ss *spec.SweepSetting, c *core.Core) (Flowsheet, error)

type Registry struct {
	builders map[spec.FlowsheetKey]Builder
}

func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[spec.FlowsheetKey]Builder, 16),
	}
}

func (r *Registry) Register(fkey spec.FlowsheetKey, b Builder) error {
	if _, ok := r.builders[fkey]; ok {
		return errs.NewFatal("duplicate flowsheet builder")
	}
	r.builders[fkey] = b
	return nil
}

func (r *Registry) Build(fkey spec.FlowsheetKey, ss *spec.SweepSetting, c *core.Core) (Flowsheet, error) {
	b, ok := r.builders[fkey]
	if !ok {
		return nil, errs.NewFatal(fmt.Sprintf("flowsheet is not exist: %s", fkey))
	}
	return b(ss, c)
}

func (r *Registry) IsExist(fkey spec.FlowsheetKey) bool {
	_, ok := r.builders[fkey]
	return ok
}

// MergeRegistry merges multiple registries into a new one.
//
// Because function values are not comparable in Go (except to nil), duplicate keys are treated
// as an error unconditionally. This keeps behavior deterministic and avoids “last one wins” surprises.
func MergeRegistry(regs ...*Registry) (*Registry, error) {
	fr := NewRegistry()

	// Track where a key first came from to produce a useful error message.
	origin := make(map[spec.FlowsheetKey]int, 16)

	for i, r := range regs {
		if r == nil {
			continue
		}
		for fkey, builder := range r.builders {
			if _, ok := fr.builders[fkey]; ok {
				prev := origin[fkey]
				return nil, errs.NewFatal(fmt.Sprintf("duplicate flowsheet key %s (registry #%d and #%d)", fkey, prev, i))
			}
			fr.builders[fkey] = builder
			origin[fkey] = i
		}
	}

	return fr, nil
}
