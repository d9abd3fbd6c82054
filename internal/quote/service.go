// Package quote prices a remote STL file: download, stage, parse, validate,
// measure and apply the pricing model.
package quote

import (
	"context"
	"fmt"
	"time"

	"stlquote/internal/domain"
	"stlquote/internal/infra/cache"
	"stlquote/internal/infra/fetch"
	"stlquote/internal/infra/logging"
	"stlquote/internal/infra/scratch"
	"stlquote/internal/mesh"
	"stlquote/internal/pricing"
)

// Service is safe for concurrent use; every call owns its own scratch file and mesh.
type Service struct {
	downloader *fetch.Downloader
	scratch    *scratch.Dir
	units      mesh.Units
	pricing    pricing.Model
	cache      *cache.QuoteCache
	cacheSalt  string
}

// NewService wires the quote pipeline. qc may be nil to disable caching.
func NewService(d *fetch.Downloader, dir *scratch.Dir, units mesh.Units, model pricing.Model, qc *cache.QuoteCache) *Service {
	return &Service{
		downloader: d,
		scratch:    dir,
		units:      units,
		pricing:    model,
		cache:      qc,
		cacheSalt:  fmt.Sprintf("%s|%g|%g", units, model.MaterialCostPerCM3, model.BaseFee),
	}
}

// Analyze quotes the mesh at url. Returned errors wrap one of the domain
// sentinels; use domain.KindOf to classify them. No partial quote is ever
// returned alongside an error.
func (s *Service) Analyze(ctx context.Context, url string) (domain.Quote, error) {
	if err := fetch.ValidateURL(url); err != nil {
		return domain.Quote{}, err
	}

	key := cache.Key(url, s.cacheSalt)
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
		return *cached, nil
	}

	start := time.Now()
	q, triangles, ext, err := s.measure(ctx, url)
	if err != nil {
		return domain.Quote{}, err
	}

	s.cache.Set(ctx, key, q)
	logging.Info("Quote computed",
		"url", fetch.TruncateURL(url),
		"triangles", triangles,
		"extents_cm", ext.Size(),
		"volume_cm3", q.VolumeCM3,
		"price", q.Price,
		"duration", time.Since(start),
	)
	return q, nil
}

func (s *Service) measure(ctx context.Context, url string) (domain.Quote, int, mesh.Extents, error) {
	f, err := s.scratch.Acquire()
	if err != nil {
		return domain.Quote{}, 0, mesh.Extents{}, fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
	defer f.Release()

	if _, err := s.downloader.DownloadToFile(ctx, url, f); err != nil {
		return domain.Quote{}, 0, mesh.Extents{}, err
	}
	if err := f.Close(); err != nil {
		return domain.Quote{}, 0, mesh.Extents{}, fmt.Errorf("%w: close scratch file: %w", domain.ErrInternal, err)
	}

	m, err := mesh.Load(f.Name())
	if err != nil {
		return domain.Quote{}, 0, mesh.Extents{}, err
	}
	m.ScaleToCentimetres(s.units)
	ext := m.Extents()

	volume, err := m.ClosedVolume()
	if err != nil {
		return domain.Quote{}, 0, ext, err
	}
	return s.pricing.Quote(volume), m.TriangleCount(), ext, nil
}
