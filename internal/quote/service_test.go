package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlquote/internal/domain"
	"stlquote/internal/infra/cache"
	"stlquote/internal/infra/fetch"
	"stlquote/internal/infra/scratch"
	"stlquote/internal/mesh"
	"stlquote/internal/mesh/meshtest"
	"stlquote/internal/pricing"
)

var defaultPricing = pricing.Model{MaterialCostPerCM3: 0.35, BaseFee: 3.00}

type fixture struct {
	srv     *httptest.Server
	dir     *scratch.Dir
	svc     *Service
	fetches atomic.Int64
}

func newFixture(t *testing.T, qc *cache.QuoteCache) *fixture {
	t.Helper()
	fx := &fixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("/cube.stl", func(w http.ResponseWriter, r *http.Request) {
		fx.fetches.Add(1)
		_, _ = w.Write(meshtest.Binary(meshtest.Cube(100)))
	})
	mux.HandleFunc("/ascii.stl", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(meshtest.ASCII("part", meshtest.Box(10, 20, 30)))
	})
	mux.HandleFunc("/open.stl", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(meshtest.Binary(meshtest.OpenBox(100)))
	})
	mux.HandleFunc("/inside-out.stl", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(meshtest.Binary(meshtest.Flipped(meshtest.Cube(100))))
	})
	mux.HandleFunc("/garbage.stl", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>this is not a mesh</body></html>"))
	})
	mux.HandleFunc("/missing.stl", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/box/", func(w http.ResponseWriter, r *http.Request) {
		var edge int
		if _, err := fmt.Sscanf(r.URL.Path, "/box/%d.stl", &edge); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write(meshtest.Binary(meshtest.Cube(float32(edge))))
	})
	fx.srv = httptest.NewServer(mux)
	t.Cleanup(fx.srv.Close)

	dir, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	fx.dir = dir
	fx.svc = NewService(fetch.NewDownloader(5*time.Second, 1<<20), dir, mesh.Millimetres, defaultPricing, qc)
	return fx
}

func (fx *fixture) url(path string) string { return fx.srv.URL + path }

func (fx *fixture) assertNoScratch(t *testing.T) {
	t.Helper()
	n, err := fx.dir.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "scratch files left behind")
}

func TestAnalyze_TenCentimetreCube(t *testing.T) {
	fx := newFixture(t, nil)
	q, err := fx.svc.Analyze(context.Background(), fx.url("/cube.stl"))
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, q.VolumeCM3, 1e-9)
	assert.InDelta(t, 353.00, q.Price, 1e-9)
	fx.assertNoScratch(t)
}

func TestAnalyze_ASCIIMesh(t *testing.T) {
	fx := newFixture(t, nil)
	q, err := fx.svc.Analyze(context.Background(), fx.url("/ascii.stl"))
	require.NoError(t, err)
	// 1cm x 2cm x 3cm
	assert.InDelta(t, 6.0, q.VolumeCM3, 1e-9)
	assert.InDelta(t, 5.10, q.Price, 1e-9)
	fx.assertNoScratch(t)
}

func TestAnalyze_FailureKinds(t *testing.T) {
	fx := newFixture(t, nil)
	cases := []struct {
		name string
		url  string
		kind domain.Kind
	}{
		{"open mesh", fx.url("/open.stl"), domain.KindGeometry},
		{"inside-out mesh", fx.url("/inside-out.stl"), domain.KindGeometry},
		{"garbage bytes", fx.url("/garbage.stl"), domain.KindParse},
		{"upstream 404", fx.url("/missing.stl"), domain.KindDownload},
		{"unreachable host", "http://127.0.0.1:1/x.stl", domain.KindDownload},
		{"bad scheme", "file:///etc/passwd", domain.KindInvalidRequest},
		{"empty url", "", domain.KindInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := fx.svc.Analyze(context.Background(), tc.url)
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err), "error: %v", err)
			assert.Equal(t, domain.Quote{}, q)
			fx.assertNoScratch(t)
		})
	}
}

func TestAnalyze_NonSuccessStatusFailsBeforeParsing(t *testing.T) {
	fx := newFixture(t, nil)
	_, err := fx.svc.Analyze(context.Background(), fx.url("/missing.stl"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDownloadFailed))
	assert.False(t, errors.Is(err, domain.ErrParseFailed))
}

func TestAnalyze_ScratchFailureIsInternal(t *testing.T) {
	fx := newFixture(t, nil)
	dir, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir.Path()))
	svc := NewService(fetch.NewDownloader(time.Second, 1<<20), dir, mesh.Millimetres, defaultPricing, nil)

	_, err = svc.Analyze(context.Background(), fx.url("/cube.stl"))
	assert.Equal(t, domain.KindInternal, domain.KindOf(err), "error: %v", err)
}

func TestAnalyze_Idempotent(t *testing.T) {
	fx := newFixture(t, nil)
	first, err := fx.svc.Analyze(context.Background(), fx.url("/cube.stl"))
	require.NoError(t, err)
	second, err := fx.svc.Analyze(context.Background(), fx.url("/cube.stl"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), fx.fetches.Load())
}

func TestAnalyze_ConcurrentRequestsGetTheirOwnMesh(t *testing.T) {
	fx := newFixture(t, nil)
	const n = 16

	var wg sync.WaitGroup
	results := make([]domain.Quote, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			edge := 10 * (i + 1) // millimetres
			results[i], errs[i] = fx.svc.Analyze(context.Background(), fx.url(fmt.Sprintf("/box/%d.stl", edge)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		cm := float64(i + 1) // edge in centimetres
		want := defaultPricing.Quote(cm * cm * cm)
		assert.InDelta(t, want.VolumeCM3, results[i].VolumeCM3, 0.01, "request %d", i)
		assert.InDelta(t, want.Price, results[i].Price, 0.01, "request %d", i)
	}
	fx.assertNoScratch(t)
}

func TestAnalyze_ServesRepeatQuotesFromCache(t *testing.T) {
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	defer mrs.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	defer rdb.Close()

	fx := newFixture(t, cache.New(rdb, time.Minute))
	first, err := fx.svc.Analyze(context.Background(), fx.url("/cube.stl"))
	require.NoError(t, err)
	second, err := fx.svc.Analyze(context.Background(), fx.url("/cube.stl"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), fx.fetches.Load())
}

func TestAnalyze_FailuresAreNotCached(t *testing.T) {
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	defer mrs.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	defer rdb.Close()

	fx := newFixture(t, cache.New(rdb, time.Minute))
	_, err = fx.svc.Analyze(context.Background(), fx.url("/open.stl"))
	require.Error(t, err)
	assert.Empty(t, mrs.Keys())
}
