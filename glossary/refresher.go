// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package glossary

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/contentcache/model"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrRefresherNotStopped = errors.New("refresher is either running or starting")
	ErrRefresherNotRunning = errors.New("refresher is either stopped or stopping")
	ErrNoRebuilder         = errors.New("no rebuilder provided")
)

// Names
const (
	RefreshCounter = "glossary_refresh_total"
)

// Labels
const (
	OutcomeLabel = "outcome"
)

// Label Values
const (
	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// refreshing states
const (
	stopped int32 = iota
	running
	transitioning
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return touchstone.CounterVec(
		prometheus.CounterOpts{
			Name: RefreshCounter,
			Help: "Counter for scheduled glossary rebuilds of one attribute, by outcome.",
		},
		OutcomeLabel,
	)
}

type Measures struct {
	fx.In
	Refreshes *prometheus.CounterVec `name:"glossary_refresh_total"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() *Measures {
	return &Measures{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{Name: RefreshCounter}, []string{OutcomeLabel}),
	}
}

// Target is one indexed attribute kept in sync by a Refresher.
type Target struct {
	Source      model.Source
	ContentType string
	Attribute   string
}

// Rebuilder rebuilds the index of one attribute.
type Rebuilder interface {
	Bulk(ctx context.Context, src model.Source, contentType, attribute string, env model.Environment) ([]string, error)
}

// RefresherConfig is the glossary section of the configuration.
type RefresherConfig struct {
	// RefreshInterval is how often every searchable attribute is rebuilt.
	// Zero disables scheduled rebuilds.
	RefreshInterval time.Duration

	// Environment whose content is indexed. Defaults to published.
	Environment string
}

// Refresher rebuilds the index of every target on an interval, so values
// changed at the origin replace the first-written ones.
type Refresher struct {
	rebuilder Rebuilder
	targets   func() []Target
	env       model.Environment
	interval  time.Duration
	measures  *Measures
	logger    *zap.Logger

	ticker   *time.Ticker
	cancel   context.CancelFunc
	shutdown chan struct{}
	state    int32
}

// NewRefresher builds a stopped Refresher. targets is read on every tick.
func NewRefresher(config RefresherConfig, r Rebuilder, targets func() []Target, measures *Measures, logger *zap.Logger) (*Refresher, error) {
	if r == nil {
		return nil, ErrNoRebuilder
	}
	env := model.Published
	if config.Environment != "" {
		var err error
		if env, err = model.ParseEnvironment(config.Environment); err != nil {
			return nil, err
		}
	}
	if measures == nil {
		measures = NewMeasures()
	}
	if logger == nil {
		logger = sallust.Default()
	}
	if targets == nil {
		targets = func() []Target { return nil }
	}
	return &Refresher{
		rebuilder: r,
		targets:   targets,
		env:       env,
		interval:  config.RefreshInterval,
		measures:  measures,
		logger:    logger,
		shutdown:  make(chan struct{}),
	}, nil
}

// Start begins rebuilding on the interval. With no interval configured this
// is a NoOp.
func (r *Refresher) Start(_ context.Context) error {
	if r.interval <= 0 {
		r.logger.Info("scheduled glossary refresh disabled")
		return nil
	}
	if !atomic.CompareAndSwapInt32(&r.state, stopped, transitioning) {
		r.logger.Error("Start called when the refresher was not in stopped state", zap.Error(ErrRefresherNotStopped))
		return ErrRefresherNotStopped
	}

	// the loop outlives the start context, so it gets its own
	ctx, cancel := context.WithCancel(sallust.With(context.Background(), r.logger))
	r.cancel = cancel
	r.ticker = time.NewTicker(r.interval)
	go func() {
		for {
			select {
			case <-r.shutdown:
				return
			case <-r.ticker.C:
				r.Refresh(ctx)
			}
		}
	}()

	atomic.SwapInt32(&r.state, running)
	return nil
}

// Stop ends the refresh loop, cancelling a refresh in progress.
func (r *Refresher) Stop(_ context.Context) error {
	if r.interval <= 0 {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&r.state, running, transitioning) {
		r.logger.Error("Stop called when the refresher was not in running state", zap.Error(ErrRefresherNotRunning))
		return ErrRefresherNotRunning
	}

	r.ticker.Stop()
	r.cancel()
	r.shutdown <- struct{}{}
	atomic.SwapInt32(&r.state, stopped)
	return nil
}

// Refresh rebuilds every target once and returns how many failed. A failing
// target does not stop the others, a cancelled context does.
func (r *Refresher) Refresh(ctx context.Context) int {
	failures := 0
	for _, t := range r.targets() {
		if ctx.Err() != nil {
			r.logger.Info("glossary refresh cancelled", zap.Error(ctx.Err()))
			break
		}
		outcome := SuccessOutcome
		keys, err := r.rebuilder.Bulk(ctx, t.Source, t.ContentType, t.Attribute, r.env)
		if err != nil {
			outcome = FailureOutcome
			failures++
			r.logger.Error("failed to refresh glossary",
				zap.String("contentType", t.ContentType), zap.String("attribute", t.Attribute), zap.Error(err))
		} else {
			r.logger.Debug("refreshed glossary",
				zap.String("contentType", t.ContentType), zap.String("attribute", t.Attribute), zap.Int("keys", len(keys)))
		}
		r.measures.Refreshes.With(prometheus.Labels{OutcomeLabel: outcome}).Add(1)
	}
	return failures
}
