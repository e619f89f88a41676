// Package pagesettest smoke tests page sets: it checks that every page set
// has a usable archive index, usable credentials and well formed attributes
// before any of them is replayed against a browser.
package pagesettest

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/telemetry/credentials"
	"github.com/liuxd6825/telemetry/log"
	"github.com/liuxd6825/telemetry/pageset"
	"github.com/liuxd6825/telemetry/wpr"
)

const logCategory = "smoke"

// TestingT is the part of *testing.T the checks need.
type TestingT interface {
	require.TestingT
	Helper()
}

// SmokeTest runs the page set checks.
type SmokeTest struct {
	fs     afero.Fs
	logger *log.Logger

	// CredentialsPath is read in addition to the page's own credentials
	// file; the page's file wins on conflicts.
	CredentialsPath string
}

// New returns a smoke test reading fixtures from fs.
func New(fs afero.Fs, logger *log.Logger) *SmokeTest {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &SmokeTest{fs: fs, logger: logger}
}

// CheckArchive verifies that every HTTP page of ps has a recorded archive.
// Page sets without an archive index are skipped.
func (s *SmokeTest) CheckArchive(t TestingT, ps *pageset.PageSet) {
	t.Helper()

	if ps.ArchiveDataFile == "" {
		s.logger.Warnf(logCategory, "Skipping %s: no archive data file", ps.FilePath)
		return
	}
	s.logger.Infof(logCategory, "Testing %s", ps.FilePath)

	path := filepath.Join(ps.BaseDir, ps.ArchiveDataFile)
	exists, err := afero.Exists(s.fs, path)
	require.True(t, err == nil && exists, "Archive data file not found for %s", ps.FilePath)

	info, err := wpr.ArchiveInfoFromFile(s.fs, path, ps.Bucket)
	require.NoError(t, err, "Archive data file of %s cannot be read", ps.FilePath)

	for _, p := range ps.Pages {
		if !strings.HasPrefix(p.URL, "http") {
			continue
		}
		_, ok := info.WprFilePathForStory(p)
		require.True(t, ok, "No archive found for %s in %s of %s", p.URL, ps.ArchiveDataFile, ps.FilePath)
	}
}

// CheckCredentials verifies that every page asking for credentials can log in.
func (s *SmokeTest) CheckCredentials(t TestingT, ps *pageset.PageSet) {
	t.Helper()

	for _, p := range ps.Pages {
		if p.Credentials == "" {
			continue
		}
		creds := credentials.New(s.fs)
		creds.ExtraPath = s.CredentialsPath
		if p.CredentialsPath != "" {
			creds.Path = filepath.Join(p.BaseDir(), p.CredentialsPath)
		}

		msg := fmt.Sprintf("page %s of %s has invalid credentials %s", p.URL, ps.FilePath, p.Credentials)
		ok, err := creds.CanLogin(p.Credentials)
		var cerr *credentials.Error
		if errors.As(err, &cerr) {
			require.Fail(t, msg, cerr.Error())
		}
		require.NoError(t, err, msg)
		require.True(t, ok, msg)
	}
}

// CheckAttributes verifies the attributes of each page of ps. The page set's
// own attributes only need to be strings, which decoding already enforces.
func (s *SmokeTest) CheckAttributes(t TestingT, ps *pageset.PageSet) {
	t.Helper()

	for _, p := range ps.Pages {
		s.checkPageAttributes(t, ps, p)
	}
}

func (s *SmokeTest) checkPageAttributes(t TestingT, ps *pageset.PageSet, p *pageset.Page) {
	t.Helper()

	name := p.DisplayName()
	_, disabled := p.Extra["disabled"]
	require.False(t, disabled, "page %s uses the removed disabled attribute", name)

	require.NotEmpty(t, p.URL, "page %s's url must be set", name)
	_, err := url.Parse(p.URL)
	require.NoError(t, err, "page %s's url must be a valid URL", name)

	require.Same(t, ps, p.PageSet, "page %s's page_set must be the page set declaring it", name)
	require.Equal(t, -1, strings.IndexFunc(p.Name, unicode.IsControl),
		"page %s's name must not contain control characters", name)

	for _, l := range p.Labels.Sorted() {
		require.NotEmpty(t, strings.TrimSpace(l), "label %q in page %s's labels must not be blank", l, name)
	}

	if p.StartupURL != "" {
		_, err := url.Parse(p.StartupURL)
		require.NoError(t, err, "page %s's startup_url must be a valid URL", name)
	}
}

// CheckNoMixedInBetweenLegacyRunMethodsAndRunPageInteractions verifies that
// no page implementing RunPageInteractions still implements one of the
// legacy run methods.
func (s *SmokeTest) CheckNoMixedInBetweenLegacyRunMethodsAndRunPageInteractions(
	t TestingT, ps *pageset.PageSet,
) {
	t.Helper()

	for _, p := range ps.Pages {
		if !p.RunMethods.Has(pageset.RunPageInteractions) {
			continue
		}
		for _, m := range pageset.LegacyRunMethods {
			require.False(t, p.RunMethods.Has(m),
				"page %s in page_set %s has both legacy Run.. methods and RunPageInteractions defined.",
				p, ps.FilePath)
		}
	}
}

// Check constructs the page set of e and runs every check on it.
func (s *SmokeTest) Check(t TestingT, e pageset.Entry) {
	t.Helper()

	ps, err := e.New()
	require.NoError(t, err, "page set %s cannot be constructed", e.Name)
	require.NotNil(t, ps, "page set %s constructed nothing", e.Name)

	s.logger.Infof(logCategory, "Testing %s", ps.FilePath)
	s.CheckArchive(t, ps)
	s.CheckCredentials(t, ps)
	s.CheckAttributes(t, ps)
	s.CheckNoMixedInBetweenLegacyRunMethodsAndRunPageInteractions(t, ps)
}

// RunSmokeTest checks every constructable page set of reg, one subtest per
// page set. Page sets that need constructor arguments are skipped.
func (s *SmokeTest) RunSmokeTest(t *testing.T, reg *pageset.Registry) {
	t.Helper()

	for _, e := range reg.Entries() {
		if !e.Constructable() {
			s.logger.Debugf(logCategory, "Skipping %s: not directly constructable", e.Name)
			continue
		}
		e := e
		t.Run(e.Name, func(t *testing.T) {
			s.Check(t, e)
		})
	}
}
