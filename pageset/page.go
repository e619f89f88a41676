package pageset

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// RunPageInteractions is the unified interactions entry point of a page.
const RunPageInteractions = "RunPageInteractions"

// LegacyRunMethods are the per-measurement entry points superseded by
// RunPageInteractions. A page must not mix the two styles.
var LegacyRunMethods = []string{ //nolint:gochecknoglobals
	"RunMediaMetrics",
	"RunNoOp",
	"RunRepaint",
	"RunPrepareForScreenShot",
	"RunSmoothness",
	"RunWebrtc",
}

// StringSet is an unordered set of strings, declared in YAML as a sequence.
type StringSet map[string]struct{}

// NewStringSet returns a set holding items.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Has reports whether item is in the set.
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the items in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringSet) UnmarshalYAML(value *yaml.Node) error {
	var items []string
	if err := value.Decode(&items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s StringSet) MarshalYAML() (interface{}, error) {
	return s.Sorted(), nil
}

// Page is one entry of a page set.
type Page struct {
	URL                         string
	Name                        string
	Labels                      StringSet
	StartupURL                  string
	Credentials                 string
	CredentialsPath             string
	MakeJavaScriptDeterministic bool

	// RunMethods lists the interaction entry points the page implements,
	// e.g. RunPageInteractions or one of LegacyRunMethods.
	RunMethods StringSet

	// Extra holds declared attributes the model does not know about,
	// including deprecated ones such as "disabled".
	Extra map[string]interface{}

	// PageSet is the set the page belongs to; AddPage sets it.
	PageSet *PageSet
}

// NewPage returns a page with the default attributes.
func NewPage(url string) *Page {
	return &Page{
		URL:                         url,
		Labels:                      StringSet{},
		RunMethods:                  StringSet{},
		MakeJavaScriptDeterministic: true,
	}
}

// DisplayName is the name of the page, or its URL when it has none.
func (p *Page) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.URL
}

// StoryURL is the URL the page is recorded under in archive indexes that
// predate page names.
func (p *Page) StoryURL() string {
	return p.URL
}

// BaseDir is the directory relative paths of the page resolve against.
func (p *Page) BaseDir() string {
	if p.PageSet == nil {
		return ""
	}
	return p.PageSet.BaseDir
}

func (p *Page) String() string {
	return p.DisplayName()
}
