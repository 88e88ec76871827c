package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_isValid(t *testing.T) {
	videos := Default()
	require.NoError(t, Validate(videos))
	assert.Len(t, videos, 3)
	for _, v := range videos {
		assert.True(t, v.Source().HasLowQuality(), v.ID)
	}
}

func TestCatalog_FindAndFirst(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	v, ok := c.Find("sintel")
	require.True(t, ok)
	assert.Equal(t, "Sintel", v.Title)

	_, ok = c.Find("missing")
	assert.False(t, ok)

	first, ok := c.First()
	require.True(t, ok)
	assert.Equal(t, "big-buck-bunny", first.ID)
}

func TestCatalog_ListIsACopy(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	list := c.List()
	list[0].Title = "mutated"

	if diff := cmp.Diff(Default(), c.List()); diff != "" {
		t.Errorf("catalog changed through List result (-want +got):\n%s", diff)
	}
}

func TestCatalog_ReplaceKeepsOldOnInvalid(t *testing.T) {
	c, err := New(Default())
	require.NoError(t, err)

	bad := []Video{
		{ID: "a", Title: "A", HQSrc: "a.mp4"},
		{ID: "a", Title: "A again", HQSrc: "b.mp4"},
	}
	assert.ErrorIs(t, c.Replace(bad), ErrInvalidCatalog)
	assert.Equal(t, 3, c.Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		videos []Video
	}{
		{"empty", nil},
		{"missing id", []Video{{Title: "x", HQSrc: "x.mp4"}}},
		{"missing title", []Video{{ID: "x", HQSrc: "x.mp4"}}},
		{"missing hq", []Video{{ID: "x", Title: "x"}}},
		{"same renditions", []Video{{ID: "x", Title: "x", HQSrc: "x.mp4", LQSrc: "x.mp4"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.videos), ErrInvalidCatalog)
		})
	}

	assert.NoError(t, Validate([]Video{{ID: "upload-only", Title: "No fallback", HQSrc: "/uploads/1"}}))
}

func TestParse(t *testing.T) {
	doc := []byte(`
videos:
  - id: a
    title: Asset A
    description: first
    hq_src: A.mp4
    lq_src: A-lq.mp4
  - id: b
    title: Asset B
    hq_src: https://cdn.example.com/B.mp4
`)
	videos, err := Parse(doc)
	require.NoError(t, err)

	want := []Video{
		{ID: "a", Title: "Asset A", Description: "first", HQSrc: "A.mp4", LQSrc: "A-lq.mp4"},
		{ID: "b", Title: "Asset B", HQSrc: "https://cdn.example.com/B.mp4"},
	}
	if diff := cmp.Diff(want, videos); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}

	_, err = Parse([]byte("videos: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}
