package taxonomy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomy_Default(t *testing.T) {
	tax := Default()

	for _, cat := range Categories() {
		tags := tax.Tags(cat)
		assert.Len(t, tags, TagsPerCategory, "category %q", cat)
		for _, tag := range tags {
			assert.True(t, tax.Contains(cat, tag))
			assert.Equal(t, cat, tax.CategoryOf(tag), "tag %q", tag)
		}
	}

	assert.Nil(t, tax.Tags("genre"))
	assert.False(t, tax.Contains(CategoryEmotion, "없는 태그"))
	assert.Empty(t, tax.CategoryOf("없는 태그"))
}

func TestTaxonomy_New_MissingCategory(t *testing.T) {
	tags := defaultTags()
	delete(tags, CategoryEmotion)

	_, err := New(tags)
	assert.Error(t, err)
}

func TestTaxonomy_New_WrongTagCount(t *testing.T) {
	tags := defaultTags()
	tags[CategoryEmotion] = tags[CategoryEmotion][:TagsPerCategory-1]

	_, err := New(tags)
	assert.Error(t, err)
}

func TestTaxonomy_New_DuplicateTag(t *testing.T) {
	tags := defaultTags()
	tags[CategoryEmotion][1] = tags[CategoryEmotion][0]

	_, err := New(tags)
	assert.Error(t, err)
}

func TestTaxonomy_Load(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		tax := Load("")
		assert.Len(t, tax.Tags(CategoryEmotion), TagsPerCategory)
	})

	t.Run("missing file falls back to default", func(t *testing.T) {
		tax := Load("/nonexistent/taxonomy.json")
		assert.Len(t, tax.Tags(CategoryEmotion), TagsPerCategory)
	})

	t.Run("malformed file falls back to default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "taxonomy.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

		tax := Load(path)
		assert.Len(t, tax.Tags(CategoryEmotion), TagsPerCategory)
	})

	t.Run("valid file", func(t *testing.T) {
		raw := make(map[string]category, len(Categories()))
		for cat, tags := range defaultTags() {
			raw[cat] = category{Tags: tags}
		}
		content, err := json.Marshal(raw)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "taxonomy.json")
		require.NoError(t, os.WriteFile(path, content, 0644))

		tax := Load(path)
		assert.True(t, tax.Contains(CategoryEmotion, "감동적이에요"))
	})
}
