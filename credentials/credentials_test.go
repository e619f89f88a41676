package credentials

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, data := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(data), 0o644))
	}
	return fs
}

func TestCanLogin(t *testing.T) {
	t.Parallel()

	fs := newFs(t, map[string]string{
		"/data/credentials.json": `{"google": {"username": "u", "password": "p"}}`,
	})
	c := New(fs)
	c.Path = "/data/credentials.json"

	ok, err := c.CanLogin("google")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CanLogin("facebook")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.CanLogin("myspace")
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "There is no credentials backend for type myspace.", cerr.Error())
}

func TestMissingFile(t *testing.T) {
	t.Parallel()

	c := New(afero.NewMemMapFs())
	c.Path = "/nowhere.json"

	ok, err := c.CanLogin("google")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidFiles(t *testing.T) {
	t.Parallel()

	fs := newFs(t, map[string]string{
		"/garbage.json":  `{"google": `,
		"/list.json":     `["google"]`,
		"/nopass.json":   `{"google": {"username": "u"}}`,
		"/numeric.json":  `{"google": {"username": "u", "password": 1}}`,
		"/flat.json":     `{"google": "u:p"}`,
		"/good.json":     `{"codepen": {"username": "u", "password": "p"}}`,
		"/goodplus.json": `{}`,
	})

	for _, path := range []string{"/garbage.json", "/list.json", "/nopass.json", "/numeric.json", "/flat.json"} {
		c := New(fs)
		c.Path = path
		_, err := c.CanLogin("google")
		var cerr *Error
		assert.True(t, errors.As(err, &cerr), path)
	}

	c := New(fs)
	c.Path = "/goodplus.json"
	c.ExtraPath = "/good.json"
	ok, err := c.CanLogin("codepen")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPathOverridesExtraPath(t *testing.T) {
	t.Parallel()

	fs := newFs(t, map[string]string{
		"/page.json":  `{"google": {"username": "page", "password": "p1"}}`,
		"/extra.json": `{"google": {"username": "extra", "password": "p2"}, "facebook": {"username": "fb", "password": "p3"}}`,
	})
	c := New(fs)
	c.Path = "/page.json"
	c.ExtraPath = "/extra.json"

	login, ok, err := c.Get("google")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Login{Username: "page", Password: "p1"}, login)

	types, err := c.Types()
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook", "google"}, types)
}
