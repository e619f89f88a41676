package wpr

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type story struct {
	name, url string
}

func (s story) DisplayName() string {
	if s.name != "" {
		return s.name
	}
	return s.url
}

func (s story) StoryURL() string { return s.url }

func writeIndex(t *testing.T, fs afero.Fs, path, data string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(data), 0o644))
}

func TestArchiveInfoFromFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeIndex(t, fs, "/page_sets/data/top_25.json", `{
		"description": "Describes the Web Page Replay archives for a page set.",
		"archives": {
			"top_25_001.wpr": ["gmail"],
			"top_25_000.wpr": ["https://www.google.com/", "https://www.youtube.com/"]
		}
	}`)

	info, err := ArchiveInfoFromFile(fs, "/page_sets/data/top_25.json", "chromium-telemetry")
	require.NoError(t, err)
	assert.Equal(t, "chromium-telemetry", info.Bucket())
	assert.Equal(t, "/page_sets/data/top_25.json", info.Path())
	assert.Contains(t, info.Description(), "Web Page Replay")
	assert.Equal(t, []string{"top_25_000.wpr", "top_25_001.wpr"}, info.Archives())

	testCases := []struct {
		story story
		want  string
	}{
		{story{name: "gmail", url: "https://mail.google.com/"}, "/page_sets/data/top_25_001.wpr"},
		{story{url: "https://www.youtube.com/"}, "/page_sets/data/top_25_000.wpr"},
		{story{name: "google", url: "https://www.google.com/"}, "/page_sets/data/top_25_000.wpr"},
		{story{name: "gmail", url: "https://www.google.com/"}, "/page_sets/data/top_25_001.wpr"},
		{story{url: "https://www.bing.com/"}, ""},
		{story{name: "https://www.google.com/", url: "https://www.bing.com/"}, "/page_sets/data/top_25_000.wpr"},
		{story{name: "bing", url: "https://www.bing.com/"}, ""},
	}
	for _, tc := range testCases {
		path, ok := info.WprFilePathForStory(tc.story)
		assert.Equal(t, tc.want != "", ok, tc.story)
		assert.Equal(t, tc.want, path, tc.story)
	}
}

func TestArchiveInfoErrors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeIndex(t, fs, "/garbage.json", `{"archives": [`)
	writeIndex(t, fs, "/list.json", `{"archives": ["a.wpr"]}`)
	writeIndex(t, fs, "/stories.json", `{"archives": {"a.wpr": "story"}}`)
	writeIndex(t, fs, "/numbers.json", `{"archives": {"a.wpr": [1]}}`)
	writeIndex(t, fs, "/empty.json", `{}`)

	for _, path := range []string{"/missing.json", "/garbage.json", "/list.json", "/stories.json", "/numbers.json"} {
		_, err := ArchiveInfoFromFile(fs, path, "")
		assert.Error(t, err, path)
	}

	_, err := ArchiveInfoFromFile(fs, "/empty.json", "my-bucket")
	assert.Error(t, err)

	info, err := ArchiveInfoFromFile(fs, "/empty.json", "")
	require.NoError(t, err)
	assert.Empty(t, info.Archives())
}
