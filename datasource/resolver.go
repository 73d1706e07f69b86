package datasource

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

const defaultMaxConcurrentLoads = 8

// Resolver returns the data tables of the methods of a class, keyed by
// "Class.method"
type Resolver interface {
	ForClass(class string) (map[string]*types.DataTable, error)
}

// NoData is a Resolver for plans without data sources
type NoData struct{}

func (NoData) ForClass(string) (map[string]*types.DataTable, error) {
	return map[string]*types.DataTable{}, nil
}

type loadedTable struct {
	source TableSource
	table  *types.DataTable
	err    error
}

// ManifestResolver serves the tables declared by a manifest. All tables are
// loaded up front; a table that failed to load makes its class resolve to an
// error.
type ManifestResolver struct {
	log      log.Logger
	manifest *Manifest

	mu     sync.RWMutex
	tables map[string]*types.DataTable
	failed map[string]error
}

// NewManifestResolver loads the manifest at path and every table it declares
func NewManifestResolver(ctx context.Context, logger log.Logger, path string) (*ManifestResolver, error) {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	manifest, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	r := &ManifestResolver{
		log:      logger.New("component", "datasource"),
		manifest: manifest,
		tables:   make(map[string]*types.DataTable),
		failed:   make(map[string]error),
	}
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ManifestResolver) load(ctx context.Context) error {
	p := pool.NewWithResults[loadedTable]().
		WithErrors().
		WithMaxGoroutines(defaultMaxConcurrentLoads).
		WithContext(ctx)
	for _, source := range r.manifest.Tables {
		p.Go(func(ctx context.Context) (loadedTable, error) {
			if err := ctx.Err(); err != nil {
				return loadedTable{}, err
			}
			table, err := ReadTable(r.manifest.path(source), source.delimiter())
			return loadedTable{source: source, table: table, err: err}, nil
		})
	}
	loaded, err := p.Wait()
	if err != nil {
		return errors.Wrap(err, "failed to load data tables")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range loaded {
		if l.err != nil {
			r.log.Warn("Failed to load data table", "method", l.source.Method, "file", l.source.File, "err", l.err)
			r.failed[l.source.Method] = l.err
			continue
		}
		r.log.Debug("Loaded data table", "method", l.source.Method, "rows", l.table.Size())
		r.tables[l.source.Method] = l.table
	}
	return nil
}

// ForClass returns copies of the tables declared for the methods of class
func (r *ManifestResolver) ForClass(class string) (map[string]*types.DataTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*types.DataTable)
	for key, err := range r.failed {
		if c, _, _ := SplitMethodKey(key); c == class {
			return nil, errors.Wrapf(err, "data table of %s unavailable", key)
		}
	}
	for key, table := range r.tables {
		if c, _, _ := SplitMethodKey(key); c == class {
			out[key] = table.Clone()
		}
	}
	return out, nil
}

// Disabled returns the "Class.method" keys the manifest declares disabled
func (r *ManifestResolver) Disabled() []string {
	return append([]string(nil), r.manifest.Disabled...)
}
