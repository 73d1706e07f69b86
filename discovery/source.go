package discovery

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCacheSize    = 128
	defaultPreloadLimit = 8
)

var skipCalls = map[string]bool{
	"Skip":    true,
	"SkipNow": true,
	"Skipf":   true,
}

// SourceResolver finds disabled tests by reading Go test sources. A test is
// disabled when the first statement of its body is an unconditional call to
// Skip, SkipNow or Skipf on its *testing.T parameter.
//
// Classes are package paths, either import paths inside the module rooted at
// the working directory or "./" relative directories.
type SourceResolver struct {
	log        log.Logger
	workingDir string
	// packages caches the parsed test functions of a package directory,
	// mapping each function name to whether it is disabled
	packages *lru.Cache[string, map[string]bool]
}

func NewSourceResolver(logger log.Logger, workingDir string) (*SourceResolver, error) {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	cache, err := lru.New[string, map[string]bool](defaultCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create package cache")
	}
	return &SourceResolver{
		log:        logger.New("component", "source-resolver"),
		workingDir: workingDir,
		packages:   cache,
	}, nil
}

func (r *SourceResolver) IsDisabled(class string, method string, _ []string) (bool, error) {
	tests, err := r.tests(class)
	if err != nil {
		return false, err
	}
	disabled, ok := tests[method]
	if !ok {
		return false, errors.Errorf("test %s not found in package %s", method, class)
	}
	return disabled, nil
}

// Preload parses the test sources of the given packages concurrently.
// Packages outside the module are logged and left to fail on lookup.
func (r *SourceResolver) Preload(ctx context.Context, pkgPaths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultPreloadLimit)
	for _, pkgPath := range pkgPaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := r.tests(pkgPath); err != nil {
				r.log.Debug("Failed to preload test sources", "package", pkgPath, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// TestFunctions returns the names of the test functions of a package, sorted
func (r *SourceResolver) TestFunctions(pkgPath string) ([]string, error) {
	tests, err := r.tests(pkgPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tests))
	for name := range tests {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (r *SourceResolver) tests(pkgPath string) (map[string]bool, error) {
	pkgDir, err := r.packageDir(pkgPath)
	if err != nil {
		return nil, err
	}
	if tests, ok := r.packages.Get(pkgDir); ok {
		return tests, nil
	}
	tests, err := parseTestFunctions(pkgDir)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Parsed test sources", "package", pkgPath, "dir", pkgDir, "tests", len(tests))
	r.packages.Add(pkgDir, tests)
	return tests, nil
}

// packageDir maps a package path to its directory under the working directory
func (r *SourceResolver) packageDir(pkgPath string) (string, error) {
	if strings.HasPrefix(pkgPath, "./") || pkgPath == "." {
		return filepath.Join(r.workingDir, strings.TrimPrefix(pkgPath, "./")), nil
	}

	goModPath := filepath.Join(r.workingDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to read go.mod")
	}
	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse go.mod")
	}
	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return "", errors.New("could not find module name in go.mod")
	}

	moduleName := modFile.Module.Mod.Path
	if pkgPath != moduleName && !strings.HasPrefix(pkgPath, moduleName+"/") {
		return "", errors.Errorf("package %s is not in module %s", pkgPath, moduleName)
	}
	relPath := strings.TrimPrefix(strings.TrimPrefix(pkgPath, moduleName), "/")
	if relPath == "" {
		relPath = "."
	}
	return filepath.Join(r.workingDir, relPath), nil
}

func parseTestFunctions(pkgDir string) (map[string]bool, error) {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read package directory")
	}

	tests := make(map[string]bool)
	fset := token.NewFileSet()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		filePath := filepath.Join(pkgDir, entry.Name())
		f, err := parser.ParseFile(fset, filePath, nil, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", entry.Name())
		}

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok || funcDecl.Recv != nil {
				continue
			}
			name := funcDecl.Name.Name
			if !strings.HasPrefix(name, "Test") || name == "TestMain" {
				continue
			}
			tests[name] = skipsUnconditionally(funcDecl)
		}
	}
	return tests, nil
}

// skipsUnconditionally reports whether the function body starts with
// t.Skip, t.SkipNow or t.Skipf, where t is the function's first parameter
func skipsUnconditionally(fn *ast.FuncDecl) bool {
	if fn.Body == nil || len(fn.Body.List) == 0 {
		return false
	}
	params := fn.Type.Params.List
	if len(params) == 0 || len(params[0].Names) == 0 {
		return false
	}
	receiver := params[0].Names[0].Name

	stmt, ok := fn.Body.List[0].(*ast.ExprStmt)
	if !ok {
		return false
	}
	call, ok := stmt.X.(*ast.CallExpr)
	if !ok {
		return false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || !skipCalls[sel.Sel.Name] {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	return ok && ident.Name == receiver
}
