// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/contentcache/glossary"
	"github.com/xmidt-org/contentcache/hydrate"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/contentcache/record"
	"github.com/xmidt-org/contentcache/request"
	"github.com/xmidt-org/contentcache/resolver"
	"github.com/xmidt-org/contentcache/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const contentConfigKey = "content"

var (
	errNoSpaces          = errors.New("no spaces configured")
	errUnknownSpace      = errors.New("unknown space")
	errDuplicateTypeName = errors.New("content type configured twice")
)

// SpaceConfig is one origin space and its credentials. Tokens may be ssm:
// references.
type SpaceConfig struct {
	SpaceID            string `validate:"required"`
	AccessToken        string `validate:"required"`
	PreviewAccessToken string
}

// TypeConfig registers a content type. An empty Space uses the default one.
type TypeConfig struct {
	ContentType string   `validate:"required"`
	Space       string
	Searchable  []string `validate:"unique,dive,required"`
}

// ContentConfig is the content section of the configuration.
type ContentConfig struct {
	Spaces             map[string]SpaceConfig `validate:"required,min=1,dive"`
	DefaultSpace       string
	DefaultEnvironment string `validate:"omitempty,oneof=published cdn preview"`
	ModelScope         string
	DefaultDepth       int          `validate:"min=-1"`
	Types              []TypeConfig `validate:"dive"`
}

// Validate checks the struct tags and that every referenced space exists.
func (c ContentConfig) Validate() error {
	if len(c.Spaces) == 0 {
		return errNoSpaces
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", model.ErrArgument, err)
	}
	if _, err := c.defaultSpace(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Types))
	for _, t := range c.Types {
		name := model.NormalizeName(t.ContentType)
		if seen[name] {
			return fmt.Errorf("%w: %s", errDuplicateTypeName, t.ContentType)
		}
		seen[name] = true
		if _, ok := c.Spaces[t.Space]; t.Space != "" && !ok {
			return fmt.Errorf("%w: %s", errUnknownSpace, t.Space)
		}
	}
	return nil
}

// defaultSpace returns DefaultSpace when set. Otherwise the alphabetically
// first space name is used, which is the only one in the common case.
func (c ContentConfig) defaultSpace() (string, error) {
	if c.DefaultSpace != "" {
		if _, ok := c.Spaces[c.DefaultSpace]; !ok {
			return "", fmt.Errorf("%w: %s", errUnknownSpace, c.DefaultSpace)
		}
		return c.DefaultSpace, nil
	}
	if len(c.Spaces) == 0 {
		return "", errNoSpaces
	}
	names := make([]string, 0, len(c.Spaces))
	for name := range c.Spaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], nil
}

func (c ContentConfig) environment() model.Environment {
	if c.DefaultEnvironment == "" {
		return model.Published
	}
	env, _ := model.ParseEnvironment(c.DefaultEnvironment)
	return env
}

// Sources resolves the credentials of every space.
func (c ContentConfig) Sources(ctx context.Context, secrets SecretResolver) (map[string]model.Source, error) {
	sources := make(map[string]model.Source, len(c.Spaces))
	for name, space := range c.Spaces {
		access, err := secrets.Resolve(ctx, space.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("space %s: %w", name, err)
		}
		preview, err := secrets.Resolve(ctx, space.PreviewAccessToken)
		if err != nil {
			return nil, fmt.Errorf("space %s: %w", name, err)
		}
		sources[name] = model.Source{
			Name:               name,
			SpaceID:            space.SpaceID,
			AccessToken:        access,
			PreviewAccessToken: preview,
		}
	}
	return sources, nil
}

type RegistryIn struct {
	fx.In
	Config  ContentConfig
	Secrets SecretResolver
	Store   store.S
	Cache   *request.Cache
	Index   *glossary.Index
	Logger  *zap.Logger
}

// NewRegistry builds a record.Model for every configured content type and
// registers it, so links between them resolve through the same registry.
func NewRegistry(in RegistryIn) (*resolver.Registry, error) {
	if err := in.Config.Validate(); err != nil {
		return nil, err
	}
	sources, err := in.Config.Sources(context.Background(), in.Secrets)
	if err != nil {
		return nil, err
	}
	defaultSpace, _ := in.Config.defaultSpace()

	registry := resolver.NewRegistry(in.Config.ModelScope)
	deps := record.Deps{
		Cache:    in.Cache,
		Hydrator: hydrate.New(registry, in.Logger),
		Index:    in.Index,
		Store:    in.Store,
		Logger:   in.Logger,
	}

	for _, t := range in.Config.Types {
		space := t.Space
		if space == "" {
			space = defaultSpace
		}
		m, err := record.New(record.Config{
			ContentType:        t.ContentType,
			Source:             sources[space],
			Searchable:         t.Searchable,
			DefaultEnvironment: in.Config.environment(),
			DefaultDepth:       in.Config.DefaultDepth,
		}, deps)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(m); err != nil {
			return nil, err
		}
		in.Logger.Info("registered content type",
			zap.String("contentType", t.ContentType),
			zap.String("space", space),
			zap.Strings("searchable", t.Searchable),
		)
	}
	return registry, nil
}
