// Package recommendation answers material selection queries: it ranks the
// current catalog against a set of requirements and derives the analytics
// views shown next to the ranking.
package recommendation

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/messaging/kafka"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/storage/minio"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Service defines the recommendation operations.
type Service interface {
	// Recommend ranks the catalog and computes every analytics view.
	Recommend(ctx context.Context, q Query) (*Report, error)

	Rank(ctx context.Context, q Query) (*RankResult, error)
	Deviations(ctx context.Context, q Query) (*DeviationResult, error)
	Profile(ctx context.Context, q Query) (*ProfileResult, error)

	// Correlation computes the Pearson matrix over columns, or over the six
	// analysed properties when columns is empty.
	Correlation(ctx context.Context, columns []string) (*material.CorrelationMatrix, error)

	// Projection runs PCA over the catalog, flagging the recommended labels.
	Projection(ctx context.Context, recommended []string, seed *int64) (*material.PCAResult, error)

	// Export writes the ranked list as CSV to w and, when object storage is
	// configured, uploads a copy.
	Export(ctx context.Context, q Query, w io.Writer) (*ExportResult, error)

	Settings() Settings
	UpdateSettings(s Settings)
}

// CatalogProvider yields the catalog snapshot a query runs against.
type CatalogProvider interface {
	Snapshot(ctx context.Context) (*material.Catalog, error)
}

// ExportUploader stores exported files.
type ExportUploader interface {
	Upload(ctx context.Context, id, fileName string, data []byte) (*minio.ExportUpload, error)
}

// EventPublisher announces answered queries.
type EventPublisher interface {
	RecommendationComputed(ctx context.Context, payload kafka.RecommendationComputedPayload) error
}

// Settings are the tunable analytics parameters. They can be swapped while
// the service is running.
type Settings struct {
	DefaultK      int
	MaxK          int
	PCAIterations int
	// Seed fixes the PCA initial vectors when a query does not supply one.
	Seed *int64
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{DefaultK: 5, MaxK: 10, PCAIterations: material.DefaultPowerIterations}
}

// Query is one recommendation request.
type Query struct {
	// Requirements may be partial; missing properties take their defaults.
	// Nil means all defaults.
	Requirements material.RequirementSpec `json:"requirements,omitempty"`
	// K is the number of recommendations. 0 selects the configured default.
	K    int    `json:"k,omitempty"`
	Seed *int64 `json:"seed,omitempty"`
}

// RankResult is the ranking view.
type RankResult struct {
	CatalogVersion string                    `json:"catalog_version"`
	K              int                       `json:"k"`
	Requirements   material.RequirementSpec  `json:"requirements"`
	Ranked         []material.RankedMaterial `json:"ranked"`
}

// DeviationResult lists the deviations of the recommended materials in both
// orders.
type DeviationResult struct {
	CatalogVersion string                     `json:"catalog_version"`
	ByScore        []material.RecordDeviation `json:"by_score"`
	ByTotal        []material.RecordDeviation `json:"by_total_deviation"`
}

// ProfileResult is the radar-chart view: the target first, then one series
// per recommended material.
type ProfileResult struct {
	CatalogVersion string                  `json:"catalog_version"`
	Properties     []material.Property     `json:"properties"`
	Series         []material.DisplayPoint `json:"series"`
}

// Report is the full answer to a query.
type Report struct {
	QueryID        string                      `json:"query_id"`
	CatalogVersion string                      `json:"catalog_version"`
	CatalogSize    int                         `json:"catalog_size"`
	K              int                         `json:"k"`
	Requirements   material.RequirementSpec    `json:"requirements"`
	Ranked         []material.RankedMaterial   `json:"ranked"`
	Deviations     []material.RecordDeviation  `json:"deviations"`
	ByTotal        []material.RecordDeviation  `json:"deviations_by_total"`
	Correlation    *material.CorrelationMatrix `json:"correlation"`
	Projection     *material.PCAResult         `json:"projection,omitempty"`
	Profile        []material.DisplayPoint     `json:"profile"`
	Warnings       []string                    `json:"warnings,omitempty"`
	ComputedAt     time.Time                   `json:"computed_at"`
}

// ExportResult describes a written export.
type ExportResult struct {
	QueryID  string              `json:"query_id"`
	FileName string              `json:"file_name"`
	Records  int                 `json:"records"`
	Upload   *minio.ExportUpload `json:"upload,omitempty"`
}

// Deps wires the service. Catalog is required.
type Deps struct {
	Catalog  CatalogProvider
	Exports  ExportUploader
	Events   EventPublisher
	Metrics  *prometheus.AppMetrics
	Logger   logging.Logger
	Settings Settings
}

type serviceImpl struct {
	catalog  CatalogProvider
	exports  ExportUploader
	events   EventPublisher
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
	settings atomic.Pointer[Settings]
	now      func() time.Time
	newID    func() string
}

// NewService creates the recommendation service.
func NewService(deps Deps) Service {
	s := &serviceImpl{
		catalog: deps.Catalog,
		exports: deps.Exports,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	if s.metrics == nil {
		s.metrics = prometheus.NewNoopAppMetrics()
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	s.UpdateSettings(deps.Settings)
	return s
}

func (s *serviceImpl) Settings() Settings {
	return *s.settings.Load()
}

// UpdateSettings replaces the analytics settings. Zero fields keep their
// defaults.
func (s *serviceImpl) UpdateSettings(in Settings) {
	def := DefaultSettings()
	if in.DefaultK <= 0 {
		in.DefaultK = def.DefaultK
	}
	if in.MaxK <= 0 {
		in.MaxK = def.MaxK
	}
	if in.DefaultK > in.MaxK {
		in.DefaultK = in.MaxK
	}
	if in.PCAIterations <= 0 {
		in.PCAIterations = def.PCAIterations
	}
	s.settings.Store(&in)
	s.logger.Info("analytics settings updated",
		logging.Int("default_k", in.DefaultK),
		logging.Int("max_k", in.MaxK),
		logging.Int("pca_iterations", in.PCAIterations))
}

// resolve fills defaults into q and validates it.
func (s *serviceImpl) resolve(q Query) (material.RequirementSpec, int, error) {
	set := s.Settings()

	req := material.DefaultRequirements()
	if q.Requirements != nil {
		req = q.Requirements.Merge(req)
	}
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	k := q.K
	switch {
	case k == 0:
		k = set.DefaultK
	case k < 0:
		return nil, 0, errors.InputPrecondition("k must be at least 1").WithDetailf("k=%d", k)
	case k > set.MaxK:
		k = set.MaxK
	}
	return req, k, nil
}

func (s *serviceImpl) pcaOptions(seed *int64) []material.PCAOption {
	set := s.Settings()
	opts := []material.PCAOption{material.WithIterations(set.PCAIterations)}
	if seed == nil {
		seed = set.Seed
	}
	if seed != nil {
		opts = append(opts, material.WithSeed(*seed))
	}
	return opts
}

// observe records the duration and outcome of one operation.
func (s *serviceImpl) observe(op string, start time.Time, err error) {
	s.metrics.RecordQuery(op, s.now().Sub(start), err)
	if err != nil && !errors.IsInputPrecondition(err) {
		s.logger.Error("query failed", logging.String("operation", op), logging.Err(err))
	}
}

func (s *serviceImpl) rank(ctx context.Context, q Query) (*material.Catalog, material.RequirementSpec, []material.RankedMaterial, error) {
	req, k, err := s.resolve(q)
	if err != nil {
		return nil, nil, nil, err
	}
	cat, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	ranked, err := material.Rank(cat, req, k)
	if err != nil {
		return nil, nil, nil, err
	}
	return cat, req, ranked, nil
}

func (s *serviceImpl) Recommend(ctx context.Context, q Query) (rep *Report, err error) {
	start := s.now()
	defer func() { s.observe("recommend", start, err) }()

	cat, req, ranked, err := s.rank(ctx, q)
	if err != nil {
		return nil, err
	}

	rep = &Report{
		QueryID:        s.newID(),
		CatalogVersion: cat.Version(),
		CatalogSize:    cat.Len(),
		K:              len(ranked),
		Requirements:   req,
		Ranked:         ranked,
	}
	labels := material.Labels(ranked)

	var pcaErr error
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep.Deviations = material.Deviations(ranked, req)
		rep.ByTotal = material.OrderByTotalDeviation(rep.Deviations)
		return nil
	})
	g.Go(func() error {
		m, err := material.CorrelateProperties(cat)
		if err != nil {
			return err
		}
		rep.Correlation = m
		return nil
	})
	g.Go(func() error {
		res, err := material.Project(cat, labels, s.pcaOptions(q.Seed)...)
		if err != nil {
			// A catalog too small for PCA still gets the other views.
			if errors.IsInputPrecondition(err) {
				pcaErr = err
				return nil
			}
			return err
		}
		rep.Projection = res
		return nil
	})
	g.Go(func() error {
		rep.Profile = material.DisplayProfile(records(ranked), req)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if pcaErr != nil {
		rep.Warnings = append(rep.Warnings, pcaErr.Error())
	}
	rep.ComputedAt = s.now().UTC()

	s.publish(ctx, rep, labels)
	s.logger.Debug("recommendation computed",
		logging.String("query_id", rep.QueryID),
		logging.String("catalog_version", rep.CatalogVersion),
		logging.Int("k", rep.K))
	return rep, nil
}

func (s *serviceImpl) publish(ctx context.Context, rep *Report, labels []string) {
	if s.events == nil {
		return
	}
	payload := kafka.RecommendationComputedPayload{
		QueryID:        rep.QueryID,
		CatalogVersion: rep.CatalogVersion,
		K:              rep.K,
		Recommended:    labels,
		ComputedAt:     rep.ComputedAt,
	}
	if len(rep.Ranked) > 0 {
		payload.BestScore = rep.Ranked[0].DistanceScore
	}
	err := s.events.RecommendationComputed(ctx, payload)
	s.metrics.RecordEvent(kafka.TopicRecommendationComputed, err)
	if err != nil {
		s.logger.Warn("failed to publish recommendation.computed",
			logging.String("query_id", rep.QueryID), logging.Err(err))
	}
}

func records(ranked []material.RankedMaterial) []material.Record {
	out := make([]material.Record, len(ranked))
	for i, m := range ranked {
		out[i] = m.Record
	}
	return out
}

func (s *serviceImpl) Rank(ctx context.Context, q Query) (res *RankResult, err error) {
	start := s.now()
	defer func() { s.observe("rank", start, err) }()

	cat, req, ranked, err := s.rank(ctx, q)
	if err != nil {
		return nil, err
	}
	return &RankResult{CatalogVersion: cat.Version(), K: len(ranked), Requirements: req, Ranked: ranked}, nil
}

func (s *serviceImpl) Deviations(ctx context.Context, q Query) (res *DeviationResult, err error) {
	start := s.now()
	defer func() { s.observe("deviations", start, err) }()

	cat, req, ranked, err := s.rank(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := material.Deviations(ranked, req)
	return &DeviationResult{
		CatalogVersion: cat.Version(),
		ByScore:        rows,
		ByTotal:        material.OrderByTotalDeviation(rows),
	}, nil
}

func (s *serviceImpl) Profile(ctx context.Context, q Query) (res *ProfileResult, err error) {
	start := s.now()
	defer func() { s.observe("profile", start, err) }()

	cat, req, ranked, err := s.rank(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ProfileResult{
		CatalogVersion: cat.Version(),
		Properties:     append([]material.Property(nil), material.Properties[:]...),
		Series:         material.DisplayProfile(records(ranked), req),
	}, nil
}

func (s *serviceImpl) Correlation(ctx context.Context, columns []string) (m *material.CorrelationMatrix, err error) {
	start := s.now()
	defer func() { s.observe("correlation", start, err) }()

	cat, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return material.CorrelateProperties(cat)
	}
	return material.Correlate(cat, columns)
}

func (s *serviceImpl) Projection(ctx context.Context, recommended []string, seed *int64) (res *material.PCAResult, err error) {
	start := s.now()
	defer func() { s.observe("pca", start, err) }()

	cat, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return material.Project(cat, recommended, s.pcaOptions(seed)...)
}

func (s *serviceImpl) Export(ctx context.Context, q Query, w io.Writer) (res *ExportResult, err error) {
	start := s.now()
	defer func() { s.observe("export", start, err) }()

	_, _, ranked, err := s.rank(ctx, q)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := csvcatalog.WriteRecommendations(&buf, ranked); err != nil {
		return nil, err
	}
	res = &ExportResult{QueryID: s.newID(), FileName: csvcatalog.ExportFileName, Records: len(ranked)}

	if s.exports != nil {
		up, err := s.exports.Upload(ctx, res.QueryID, res.FileName, buf.Bytes())
		if err != nil {
			s.logger.Warn("failed to upload export",
				logging.String("query_id", res.QueryID), logging.Err(err))
		} else {
			res.Upload = up
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to write export")
	}
	return res, nil
}
