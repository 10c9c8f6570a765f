// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/xmidt-org/contentcache/glossary"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/resolver"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const glossaryConfigKey = "glossary"

type sourced interface {
	Source() model.Source
}

// refreshTargets lists every searchable attribute of the registered types.
func refreshTargets(r *resolver.Registry) func() []glossary.Target {
	return func() []glossary.Target {
		var targets []glossary.Target
		for _, h := range r.Handles() {
			s, ok := h.(sourced)
			if !ok {
				continue
			}
			for _, attribute := range h.Searchable() {
				targets = append(targets, glossary.Target{
					Source:      s.Source(),
					ContentType: h.ContentType(),
					Attribute:   attribute,
				})
			}
		}
		return targets
	}
}

type RefresherIn struct {
	fx.In
	Config    glossary.RefresherConfig
	Index     *glossary.Index
	Registry  *resolver.Registry
	Measures  glossary.Measures
	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
}

// BuildRefresher runs scheduled glossary rebuilds for the life of the app.
func BuildRefresher(in RefresherIn) error {
	r, err := glossary.NewRefresher(in.Config, in.Index, refreshTargets(in.Registry), &in.Measures, in.Logger)
	if err != nil {
		return err
	}
	in.Lifecycle.Append(fx.Hook{
		OnStart: r.Start,
		OnStop:  r.Stop,
	})
	return nil
}
