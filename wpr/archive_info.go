// Package wpr reads Web Page Replay archive indexes: JSON files mapping
// recorded archive files to the stories (pages) they contain.
//
//	{
//	  "description": "Describes the Web Page Replay archives for a page set.",
//	  "archives": {
//	    "top_25_000.wpr": ["https://www.google.com/", "gmail"]
//	  }
//	}
package wpr

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

// Buckets archives may be fetched from. An empty bucket means the archives
// are only available locally.
var Buckets = []string{ //nolint:gochecknoglobals
	"chromium-telemetry",
	"chrome-partner-telemetry",
	"chrome-telemetry",
}

// Story is something recorded in an archive. Indexes name it by its display
// name; older ones use its URL.
type Story interface {
	DisplayName() string
	StoryURL() string
}

// ArchiveInfo is a loaded archive index.
type ArchiveInfo struct {
	path        string
	baseDir     string
	bucket      string
	description string
	archives    map[string][]string
	byStory     map[string]string
}

// ArchiveInfoFromFile loads the archive index at path.
func ArchiveInfoFromFile(fs afero.Fs, path, bucket string) (*ArchiveInfo, error) {
	if bucket != "" && !knownBucket(bucket) {
		return nil, fmt.Errorf("archive index %s: unknown bucket %q", path, bucket)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("archive index %s is not valid JSON", path)
	}

	info := &ArchiveInfo{
		path:        path,
		baseDir:     filepath.Dir(path),
		bucket:      bucket,
		description: gjson.GetBytes(data, "description").String(),
		archives:    make(map[string][]string),
		byStory:     make(map[string]string),
	}

	archives := gjson.GetBytes(data, "archives")
	if archives.Exists() && !archives.IsObject() {
		return nil, fmt.Errorf("archive index %s: archives must be an object", path)
	}
	archives.ForEach(func(file, stories gjson.Result) bool {
		if !stories.IsArray() {
			err = fmt.Errorf("archive index %s: stories of %s must be a list", path, file.String())
			return false
		}
		for _, s := range stories.Array() {
			if s.Type != gjson.String {
				err = fmt.Errorf("archive index %s: story %s of %s must be a string", path, s.Raw, file.String())
				return false
			}
			info.archives[file.String()] = append(info.archives[file.String()], s.String())
			info.byStory[s.String()] = file.String()
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func knownBucket(bucket string) bool {
	for _, b := range Buckets {
		if b == bucket {
			return true
		}
	}
	return false
}

// Path is the location the index was loaded from.
func (a *ArchiveInfo) Path() string { return a.path }

// Bucket is the cloud storage bucket holding the archives.
func (a *ArchiveInfo) Bucket() string { return a.bucket }

// Description is the free-form description of the index.
func (a *ArchiveInfo) Description() string { return a.description }

// Archives returns the archive file names, sorted.
func (a *ArchiveInfo) Archives() []string {
	out := make([]string, 0, len(a.archives))
	for f := range a.archives {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// WprFilePathForStory returns the path of the archive recording s, resolved
// against the directory of the index. The URL of s is looked up when its
// display name is not indexed.
func (a *ArchiveInfo) WprFilePathForStory(s Story) (string, bool) {
	file, ok := a.byStory[s.DisplayName()]
	if !ok {
		file, ok = a.byStory[s.StoryURL()]
	}
	if !ok {
		return "", false
	}
	return filepath.Join(a.baseDir, file), true
}
