package pageset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// pageSetDecl is the YAML form of a page set.
type pageSetDecl struct {
	Abstract        bool       `yaml:"abstract"`
	ArchiveDataFile string     `yaml:"archive_data_file"`
	UserAgentType   string     `yaml:"user_agent_type"`
	Bucket          string     `yaml:"bucket"`
	Pages           []pageDecl `yaml:"pages"`
}

type pageDecl struct {
	URL                         string                 `yaml:"url"`
	Name                        string                 `yaml:"name"`
	Labels                      StringSet              `yaml:"labels"`
	StartupURL                  string                 `yaml:"startup_url"`
	Credentials                 string                 `yaml:"credentials"`
	CredentialsPath             string                 `yaml:"credentials_path"`
	MakeJavaScriptDeterministic *bool                  `yaml:"make_javascript_deterministic"`
	RunMethods                  StringSet              `yaml:"run_methods"`
	Extra                       map[string]interface{} `yaml:",inline"`
}

// Load reads the page set declared in the YAML file at path.
func Load(fs afero.Fs, path string) (*PageSet, error) {
	decl, err := readDecl(fs, path)
	if err != nil {
		return nil, err
	}
	return decl.build(path), nil
}

func readDecl(fs afero.Fs, path string) (*pageSetDecl, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var decl pageSetDecl
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&decl); err != nil {
		return nil, fmt.Errorf("decoding page set %s: %w", path, err)
	}
	return &decl, nil
}

func (d *pageSetDecl) build(path string) *PageSet {
	ps := New(path)
	ps.ArchiveDataFile = d.ArchiveDataFile
	ps.UserAgentType = d.UserAgentType
	ps.Bucket = d.Bucket
	for _, pd := range d.Pages {
		p := NewPage(pd.URL)
		p.Name = pd.Name
		p.StartupURL = pd.StartupURL
		p.Credentials = pd.Credentials
		p.CredentialsPath = pd.CredentialsPath
		if pd.Labels != nil {
			p.Labels = pd.Labels
		}
		if pd.RunMethods != nil {
			p.RunMethods = pd.RunMethods
		}
		if pd.MakeJavaScriptDeterministic != nil {
			p.MakeJavaScriptDeterministic = *pd.MakeJavaScriptDeterministic
		}
		p.Extra = pd.Extra
		ps.AddPage(p)
	}
	return ps
}

// Discover walks dir for *.yaml and *.yml page set declarations and registers
// one entry per file in reg, named by its path relative to dir. Abstract
// declarations are registered as not constructable. A file that fails to
// decode is still registered; its factory returns the decode error.
func Discover(fs afero.Fs, dir string, reg *Registry) error {
	return afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		name, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		decl, derr := readDecl(fs, path)
		if derr == nil && decl.Abstract {
			return reg.RegisterAbstract(name)
		}
		return reg.Register(name, func() (*PageSet, error) {
			if derr != nil {
				return nil, derr
			}
			// Rebuild on every call so callers never share pages.
			return decl.build(path), nil
		})
	})
}
