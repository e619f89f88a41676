// Package credentials reads the login credentials pages need, stored as JSON
// keyed by credentials type:
//
//	{"google": {"username": "example", "password": "secret"}}
package credentials

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

// Error reports a credentials file or type that cannot be used.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(format string, args ...interface{}) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Backends lists the credentials types pages may ask for.
var Backends = []string{"codepen", "facebook", "google"} //nolint:gochecknoglobals

// Login is a username and password pair.
type Login struct {
	Username string
	Password string
}

// Credentials resolves logins from up to two JSON files. Entries of Path
// take precedence over those of ExtraPath.
type Credentials struct {
	fs afero.Fs

	Path      string
	ExtraPath string

	once   sync.Once
	logins map[string]Login
	err    error
}

// New returns credentials read from fs. Paths are set by the caller before
// the first lookup.
func New(fs afero.Fs) *Credentials {
	return &Credentials{fs: fs}
}

// CanLogin reports whether a login of the given type is available. An
// unknown type or an unusable file is an *Error.
func (c *Credentials) CanLogin(typ string) (bool, error) {
	if !knownBackend(typ) {
		return false, newError("There is no credentials backend for type %s.", typ)
	}
	logins, err := c.load()
	if err != nil {
		return false, err
	}
	_, ok := logins[typ]
	return ok, nil
}

// Get returns the login of the given type.
func (c *Credentials) Get(typ string) (Login, bool, error) {
	if !knownBackend(typ) {
		return Login{}, false, newError("There is no credentials backend for type %s.", typ)
	}
	logins, err := c.load()
	if err != nil {
		return Login{}, false, err
	}
	l, ok := logins[typ]
	return l, ok, nil
}

// Types returns the types that have a login, sorted.
func (c *Credentials) Types() ([]string, error) {
	logins, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(logins))
	for typ := range logins {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Credentials) load() (map[string]Login, error) {
	c.once.Do(func() {
		c.logins = make(map[string]Login)
		for _, path := range []string{c.ExtraPath, c.Path} {
			if path == "" {
				continue
			}
			if c.err = c.readFile(path); c.err != nil {
				return
			}
		}
	})
	return c.logins, c.err
}

func (c *Credentials) readFile(path string) error {
	data, err := afero.ReadFile(c.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return newError("Unable to read credentials file %s: %s", path, err)
	}
	if !gjson.ValidBytes(data) {
		return newError("Credentials file %s is not valid JSON.", path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return newError("Credentials file %s must contain an object.", path)
	}

	root.ForEach(func(typ, entry gjson.Result) bool {
		username, password := entry.Get("username"), entry.Get("password")
		if !entry.IsObject() || username.Type != gjson.String || password.Type != gjson.String {
			err = newError("Credentials for %s in %s must have a username and a password.", typ.String(), path)
			return false
		}
		c.logins[typ.String()] = Login{Username: username.String(), Password: password.String()}
		return true
	})
	return err
}

func knownBackend(typ string) bool {
	for _, b := range Backends {
		if b == typ {
			return true
		}
	}
	return false
}
