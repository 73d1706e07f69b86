package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginTestSource = `package login

import "testing"

func TestMain(m *testing.M) {}

func TestLogin(t *testing.T) {
	t.Log("running")
}

func TestLegacyLogin(t *testing.T) {
	t.Skip("replaced by TestLogin")
}

func TestFlakyLogin(tt *testing.T) {
	tt.SkipNow()
}

func TestConditionalSkip(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
}

func TestEmpty(t *testing.T) {}

func helper(t *testing.T) {
	t.Skip()
}
`

func writeModule(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module github.com/test/module\n\ngo 1.21\n"), 0644))
	pkgDir := filepath.Join(dir, "login")
	require.NoError(t, os.MkdirAll(pkgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "login_test.go"), []byte(loginTestSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "login.go"), []byte("package login\n"), 0644))
	return dir
}

func newSourceResolver(t *testing.T, dir string) *SourceResolver {
	r, err := NewSourceResolver(log.NewLogger(log.DiscardHandler()), dir)
	require.NoError(t, err)
	return r
}

func TestSourceResolver_IsDisabled(t *testing.T) {
	dir := writeModule(t)
	r := newSourceResolver(t, dir)

	tests := []struct {
		pkg      string
		method   string
		disabled bool
	}{
		{pkg: "github.com/test/module/login", method: "TestLogin", disabled: false},
		{pkg: "github.com/test/module/login", method: "TestLegacyLogin", disabled: true},
		{pkg: "github.com/test/module/login", method: "TestFlakyLogin", disabled: true},
		{pkg: "github.com/test/module/login", method: "TestConditionalSkip", disabled: false},
		{pkg: "github.com/test/module/login", method: "TestEmpty", disabled: false},
		{pkg: "./login", method: "TestLegacyLogin", disabled: true},
	}
	for _, tt := range tests {
		t.Run(tt.pkg+"."+tt.method, func(t *testing.T) {
			disabled, err := r.IsDisabled(tt.pkg, tt.method, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.disabled, disabled)
		})
	}
}

func TestSourceResolver_Errors(t *testing.T) {
	dir := writeModule(t)
	r := newSourceResolver(t, dir)

	_, err := r.IsDisabled("github.com/other/module/login", "TestLogin", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not in module")

	_, err = r.IsDisabled("github.com/test/module/login", "TestMissing", nil)
	require.Error(t, err)

	_, err = r.IsDisabled("github.com/test/module/nothing", "TestLogin", nil)
	require.Error(t, err)

	_, err = newSourceResolver(t, t.TempDir()).IsDisabled("github.com/test/module/login", "TestLogin", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read go.mod")
}

func TestSourceResolver_TestFunctions(t *testing.T) {
	dir := writeModule(t)
	r := newSourceResolver(t, dir)

	names, err := r.TestFunctions("github.com/test/module/login")
	require.NoError(t, err)
	assert.Equal(t, []string{"TestConditionalSkip", "TestEmpty", "TestFlakyLogin", "TestLegacyLogin", "TestLogin"}, names)
}

func TestSourceResolver_CachesPackages(t *testing.T) {
	dir := writeModule(t)
	r := newSourceResolver(t, dir)

	disabled, err := r.IsDisabled("./login", "TestLegacyLogin", nil)
	require.NoError(t, err)
	require.True(t, disabled)

	require.NoError(t, os.Remove(filepath.Join(dir, "login", "login_test.go")))

	disabled, err = r.IsDisabled("./login", "TestLegacyLogin", nil)
	require.NoError(t, err)
	assert.True(t, disabled)
	assert.Equal(t, 1, r.packages.Len())
}

func TestSourceResolver_Preload(t *testing.T) {
	dir := writeModule(t)
	r := newSourceResolver(t, dir)

	err := r.Preload(context.Background(), []string{
		"github.com/test/module/login",
		"github.com/other/module/login",
		"./missing",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.packages.Len())

	require.NoError(t, os.Remove(filepath.Join(dir, "login", "login_test.go")))
	disabled, err := r.IsDisabled("./login", "TestLegacyLogin", nil)
	require.NoError(t, err)
	assert.True(t, disabled)
}

func TestSourceResolver_PreloadCancelled(t *testing.T) {
	r := newSourceResolver(t, writeModule(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Preload(ctx, []string{"./login"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, r.packages.Len())
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver("LoginTest.legacyLogin", " ", "ShopTest.checkout ")

	disabled, err := r.IsDisabled("LoginTest", "legacyLogin", []string{"String"})
	require.NoError(t, err)
	assert.True(t, disabled)

	disabled, err = r.IsDisabled("ShopTest", "checkout", nil)
	require.NoError(t, err)
	assert.True(t, disabled)

	disabled, err = r.IsDisabled("LoginTest", "login", nil)
	require.NoError(t, err)
	assert.False(t, disabled)
}

type failingResolver struct{}

func (failingResolver) IsDisabled(string, string, []string) (bool, error) {
	return false, errors.New("lookup failed")
}

func TestChainResolver(t *testing.T) {
	static := NewStaticResolver("A.b")

	disabled, err := ChainResolver{NoneDisabled{}, static}.IsDisabled("A", "b", nil)
	require.NoError(t, err)
	assert.True(t, disabled)

	disabled, err = ChainResolver{static, failingResolver{}}.IsDisabled("A", "b", nil)
	require.NoError(t, err)
	assert.True(t, disabled, "stops at the first resolver that disables")

	_, err = ChainResolver{failingResolver{}, static}.IsDisabled("A", "b", nil)
	require.Error(t, err)

	disabled, err = ChainResolver{}.IsDisabled("A", "b", nil)
	require.NoError(t, err)
	assert.False(t, disabled)
}

func TestChainResolver_Preload(t *testing.T) {
	dir := writeModule(t)
	source := newSourceResolver(t, dir)

	chain := ChainResolver{NewStaticResolver("A.b"), source}
	require.NoError(t, chain.Preload(context.Background(), []string{"./login"}))
	assert.Equal(t, 1, source.packages.Len())
}
