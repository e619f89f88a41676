// Package pageset models page sets: declarative collections of test pages
// plus the metadata needed to replay them (archive index, credentials, user
// agent).
package pageset

import (
	"path/filepath"
)

// Well known user agent types of a page set.
const (
	UserAgentDesktop      = "desktop"
	UserAgentMobile       = "mobile"
	UserAgentTablet       = "tablet"
	UserAgentTablet10Inch = "tablet_10_inch"
)

// Cloud storage buckets archives may live in.
const (
	PublicBucket   = "chromium-telemetry"
	PartnerBucket  = "chrome-partner-telemetry"
	InternalBucket = "chrome-telemetry"
)

// PageSet is a collection of pages sharing an archive index and user agent.
type PageSet struct {
	FilePath        string
	BaseDir         string
	ArchiveDataFile string
	UserAgentType   string
	Bucket          string
	Pages           []*Page
}

// New returns an empty page set declared at filePath. BaseDir is the
// directory of filePath.
func New(filePath string) *PageSet {
	ps := &PageSet{FilePath: filePath}
	if filePath != "" {
		ps.BaseDir = filepath.Dir(filePath)
	}
	return ps
}

// AddPage appends p and points its back-reference at ps.
func (ps *PageSet) AddPage(p *Page) *Page {
	p.PageSet = ps
	ps.Pages = append(ps.Pages, p)
	return p
}

// AddPageWithURL appends a default page for url.
func (ps *PageSet) AddPageWithURL(url string) *Page {
	return ps.AddPage(NewPage(url))
}
