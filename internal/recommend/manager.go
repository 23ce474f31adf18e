// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pourcast/pourcast/internal/metrics"
)

// snapshotSchemaVersion is the serialization schema this build writes and
// accepts. Bump on incompatible changes to the model state structs.
const snapshotSchemaVersion = 1

// contentModel is the in-memory content-similarity model. The heavy state
// lives in the graph store; this records what is being served.
type contentModel struct {
	version   int
	trainedAt time.Time
	itemCount int
	edgeCount int
}

// factorizationModel is the in-memory factorization model.
type factorizationModel struct {
	version    int
	trainedAt  time.Time
	candidates map[int64][]Candidate
	userCount  int
	itemCount  int
}

// modelStatus tracks lifecycle state per model type, guarded by Manager.statusMu.
type modelStatus struct {
	state   ModelState
	fitting bool
}

// Manager owns the model lifecycle: lazy loading from the snapshot store,
// synchronous first fits, scheduled refits and atomic swaps.
//
// A fit always builds and persists the new artifact before the serving
// model is swapped; the previous snapshot is only replaced by the
// successful overwrite. A failed fit therefore leaves both the serving
// model and the stored snapshot untouched.
type Manager struct {
	cfg       Config
	data      DataProvider
	graph     GraphStore
	snapshots SnapshotStore
	contentTr ContentTrainer
	factTr    FactorizationTrainer
	logger    zerolog.Logger

	content atomic.Pointer[contentModel]
	fact    atomic.Pointer[factorizationModel]

	statusMu sync.RWMutex
	statuses map[ModelType]*modelStatus

	// fitLocks serialize fits per model type; TryLock makes a concurrent
	// fit request fail fast with ErrFitInProgress.
	fitLocks map[ModelType]*sync.Mutex

	// loads coalesces concurrent lazy-load attempts per model type.
	loads singleflight.Group
}

// NewManager creates a lifecycle manager. Nothing is loaded until the first
// EnsureLoaded call.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewManager(cfg Config, data DataProvider, graph GraphStore, snapshots SnapshotStore,
	contentTr ContentTrainer, factTr FactorizationTrainer, logger zerolog.Logger) *Manager {
	m := &Manager{
		cfg:       cfg,
		data:      data,
		graph:     graph,
		snapshots: snapshots,
		contentTr: contentTr,
		factTr:    factTr,
		logger:    logger.With().Str("component", "model-manager").Logger(),
		statuses:  make(map[ModelType]*modelStatus, len(ModelTypes)),
		fitLocks:  make(map[ModelType]*sync.Mutex, len(ModelTypes)),
	}
	for _, mt := range ModelTypes {
		m.statuses[mt] = &modelStatus{state: StateUnloaded}
		m.fitLocks[mt] = &sync.Mutex{}
	}
	return m
}

// Candidates implements CandidateSource over the factorization model.
// An unloaded model or unknown user yields an empty slice.
func (m *Manager) Candidates(userID int64) []Candidate {
	model := m.fact.Load()
	if model == nil {
		return nil
	}
	return model.candidates[userID]
}

// State returns the lifecycle state of one model.
func (m *Manager) State(mt ModelType) ModelState {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	if st, ok := m.statuses[mt]; ok {
		return st.state
	}
	return StateUnloaded
}

func (m *Manager) setState(mt ModelType, state ModelState) {
	m.statusMu.Lock()
	m.statuses[mt].state = state
	m.statusMu.Unlock()
}

func (m *Manager) setFitting(mt ModelType, fitting bool) {
	m.statusMu.Lock()
	m.statuses[mt].fitting = fitting
	m.statusMu.Unlock()
}

// Fitting reports whether any model is currently being fitted.
func (m *Manager) Fitting() bool {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	for _, st := range m.statuses {
		if st.fitting {
			return true
		}
	}
	return false
}

// loaded reports whether the model is in memory and not stale.
func (m *Manager) loaded(mt ModelType) bool {
	if m.State(mt) == StateStale {
		return false
	}
	switch mt {
	case ModelContentSimilarity:
		return m.content.Load() != nil
	case ModelFactorization:
		return m.fact.Load() != nil
	default:
		return false
	}
}

// EnsureLoaded makes the model servable, lazily loading it from the
// snapshot store on first use. Concurrent callers coalesce into a single
// load. When no usable snapshot exists the model is fitted synchronously,
// so the first request after a cold start pays the fit cost instead of
// failing.
func (m *Manager) EnsureLoaded(ctx context.Context, mt ModelType) error {
	if _, ok := m.statuses[mt]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, mt)
	}
	if m.loaded(mt) {
		return nil
	}

	_, err, _ := m.loads.Do(string(mt), func() (any, error) {
		if m.loaded(mt) {
			return nil, nil
		}
		m.setState(mt, StateLoading)

		err := m.load(ctx, mt)
		if err == nil {
			m.setState(mt, StateReady)
			metrics.SnapshotLoads.WithLabelValues(string(mt), "hit").Inc()
			return nil, nil
		}

		if errors.Is(err, ErrSnapshotNotFound) {
			metrics.SnapshotLoads.WithLabelValues(string(mt), "miss").Inc()
			m.logger.Info().Str("model", string(mt)).Msg("no snapshot found, fitting synchronously")
		} else {
			metrics.SnapshotLoads.WithLabelValues(string(mt), "error").Inc()
			m.logger.Warn().Err(err).Str("model", string(mt)).Msg("snapshot load failed, refitting")
		}

		if fitErr := m.Fit(ctx, mt); fitErr != nil {
			m.setState(mt, StateUnloaded)
			return nil, fitErr
		}
		return nil, nil
	})
	return err
}

// load restores one model from its snapshot.
func (m *Manager) load(ctx context.Context, mt ModelType) error {
	switch mt {
	case ModelContentSimilarity:
		var state ContentModelState
		meta, err := m.snapshots.Load(ctx, string(mt), &state)
		if err != nil {
			return err
		}
		// The snapshot carries the full edge set, so a cold process can
		// restore the graph without retraining.
		if err := m.graph.Rebuild(ctx, state.Edges); err != nil {
			return fmt.Errorf("rebuild similarity graph: %w", err)
		}
		m.content.Store(&contentModel{
			version:   meta.Version,
			trainedAt: meta.TrainedAt,
			itemCount: len(state.Items),
			edgeCount: len(state.Edges),
		})
		metrics.ModelVersion.WithLabelValues(string(mt)).Set(float64(meta.Version))
		return nil

	case ModelFactorization:
		var state FactorizationModelState
		meta, err := m.snapshots.Load(ctx, string(mt), &state)
		if err != nil {
			return err
		}
		m.fact.Store(&factorizationModel{
			version:    meta.Version,
			trainedAt:  meta.TrainedAt,
			candidates: state.Candidates,
			userCount:  meta.UserCount,
			itemCount:  meta.ItemCount,
		})
		metrics.ModelVersion.WithLabelValues(string(mt)).Set(float64(meta.Version))
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownModel, mt)
	}
}

// Fit trains one model, persists the new snapshot and swaps it in. Returns
// ErrFitInProgress when a fit for the same model is already running.
func (m *Manager) Fit(ctx context.Context, mt ModelType) error {
	lock, ok := m.fitLocks[mt]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, mt)
	}
	if !lock.TryLock() {
		return ErrFitInProgress
	}
	defer lock.Unlock()

	m.setFitting(mt, true)
	defer m.setFitting(mt, false)

	start := time.Now()
	var err error
	switch mt {
	case ModelContentSimilarity:
		err = m.fitContent(ctx, start)
	case ModelFactorization:
		err = m.fitFactorization(ctx, start)
	}
	if err != nil {
		metrics.FitFailures.WithLabelValues(string(mt)).Inc()
		m.logger.Error().Err(err).Str("model", string(mt)).Msg("model fit failed, previous snapshot kept")
		return err
	}

	metrics.FitDuration.WithLabelValues(string(mt)).Observe(time.Since(start).Seconds())
	m.setState(mt, StateReady)
	m.logger.Info().
		Str("model", string(mt)).
		Dur("duration", time.Since(start)).
		Msg("model fit complete")
	return nil
}

func (m *Manager) fitContent(ctx context.Context, trainedAt time.Time) error {
	items, err := m.data.Alcohols(ctx)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	state, err := m.contentTr.Train(ctx, items)
	if err != nil {
		return fmt.Errorf("train content model: %w", err)
	}

	version := m.nextVersion(ModelContentSimilarity)
	meta := SnapshotMetadata{
		Tag:           string(ModelContentSimilarity),
		SchemaVersion: snapshotSchemaVersion,
		Version:       version,
		TrainedAt:     trainedAt,
		ItemCount:     len(state.Items),
		EdgeCount:     len(state.Edges),
	}
	// Persist before swapping: the old snapshot stays loadable until the
	// new one has been written in full.
	if err := m.snapshots.Put(ctx, string(ModelContentSimilarity), state, meta); err != nil {
		return fmt.Errorf("persist content snapshot: %w", err)
	}

	if err := m.graph.Rebuild(ctx, state.Edges); err != nil {
		return fmt.Errorf("rebuild similarity graph: %w", err)
	}

	m.content.Store(&contentModel{
		version:   version,
		trainedAt: trainedAt,
		itemCount: len(state.Items),
		edgeCount: len(state.Edges),
	})
	metrics.ModelVersion.WithLabelValues(string(ModelContentSimilarity)).Set(float64(version))
	return nil
}

func (m *Manager) fitFactorization(ctx context.Context, trainedAt time.Time) error {
	reviews, err := m.data.AllReviews(ctx)
	if err != nil {
		return fmt.Errorf("fetch reviews: %w", err)
	}

	state, err := m.factTr.Train(ctx, reviews)
	if err != nil {
		return fmt.Errorf("train factorization model: %w", err)
	}

	users := make(map[int64]struct{})
	items := make(map[int64]struct{})
	for _, r := range reviews {
		users[r.UserID] = struct{}{}
		items[r.AlcoholID] = struct{}{}
	}

	version := m.nextVersion(ModelFactorization)
	meta := SnapshotMetadata{
		Tag:           string(ModelFactorization),
		SchemaVersion: snapshotSchemaVersion,
		Version:       version,
		TrainedAt:     trainedAt,
		UserCount:     len(users),
		ItemCount:     len(items),
	}
	if err := m.snapshots.Put(ctx, string(ModelFactorization), state, meta); err != nil {
		return fmt.Errorf("persist factorization snapshot: %w", err)
	}

	m.fact.Store(&factorizationModel{
		version:    version,
		trainedAt:  trainedAt,
		candidates: state.Candidates,
		userCount:  len(users),
		itemCount:  len(items),
	})
	metrics.ModelVersion.WithLabelValues(string(ModelFactorization)).Set(float64(version))
	return nil
}

// nextVersion returns the successor of the latest stored version.
func (m *Manager) nextVersion(mt ModelType) int {
	if v, ok := m.snapshots.Latest(string(mt)); ok {
		return v + 1
	}
	return 1
}

// FitAll fits both models concurrently. Per-model single-flight guards
// still apply; different model types may fit in parallel.
func (m *Manager) FitAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(ModelTypes))
	for i, mt := range ModelTypes {
		wg.Add(1)
		go func(i int, mt ModelType) {
			defer wg.Done()
			errs[i] = m.Fit(ctx, mt)
		}(i, mt)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Invalidate marks a model stale so the next request reloads it from the
// snapshot store. Covers refits done by another process sharing the store.
func (m *Manager) Invalidate(mt ModelType) error {
	if _, ok := m.statuses[mt]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, mt)
	}
	switch mt {
	case ModelContentSimilarity:
		m.content.Store(nil)
	case ModelFactorization:
		m.fact.Store(nil)
	}
	m.setState(mt, StateStale)
	m.logger.Info().Str("model", string(mt)).Msg("model invalidated")
	return nil
}

// Status reports all models for the status endpoint.
func (m *Manager) Status() []ModelStatus {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	statuses := make([]ModelStatus, 0, len(ModelTypes))
	for _, mt := range ModelTypes {
		st := ModelStatus{
			Type:    mt,
			State:   m.statuses[mt].state.String(),
			Fitting: m.statuses[mt].fitting,
		}
		switch mt {
		case ModelContentSimilarity:
			if model := m.content.Load(); model != nil {
				st.Version = model.version
				st.TrainedAt = model.trainedAt
				st.ItemCount = model.itemCount
				st.EdgeCount = model.edgeCount
			}
		case ModelFactorization:
			if model := m.fact.Load(); model != nil {
				st.Version = model.version
				st.TrainedAt = model.trainedAt
				st.UserCount = model.userCount
				st.ItemCount = model.itemCount
			}
		}
		statuses = append(statuses, st)
	}
	return statuses
}

var _ CandidateSource = (*Manager)(nil)
