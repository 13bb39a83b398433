package gallery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

func TestParseTree(t *testing.T) {
	data := []byte(`{
		"/": {"id": 1, "pro": 0},
		"/2019/": {"id": "7", "pro": false, "original": 1},
		"/2019/secret/": {"id": 9, "pro": 1, "original": false}
	}`)

	tree, err := ParseTree(data)
	require.NoError(t, err)
	require.Len(t, tree, 3)

	assert.Equal(t, FolderID("1"), tree["/"].ID)
	assert.Equal(t, FolderID("7"), tree["/2019/"].ID)
	assert.True(t, tree["/"].AllowOriginal, "original defaults to true")
	assert.True(t, tree["/2019/"].AllowOriginal)

	secret := tree["/2019/secret/"]
	assert.True(t, secret.Protected)
	assert.False(t, secret.AllowOriginal)
	assert.Equal(t, "/2019/secret", secret.Dir())

	assert.Equal(t, []string{"/", "/2019/", "/2019/secret/"}, tree.Paths())
	assert.Equal(t, "/2019/secret/", tree.ByID()["9"].Path)
}

func TestParseTree_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `nope`},
		{name: "not an object", data: `[1,2]`},
		{name: "missing id", data: `{"/a/": {"pro": 0}}`},
		{name: "duplicate id", data: `{"/a/": {"id": 1}, "/b/": {"id": "1"}}`},
		{name: "relative path", data: `{"a/": {"id": 1}}`},
		{name: "no trailing slash", data: `{"/a": {"id": 1}}`},
		{name: "dot segment", data: `{"/a/../b/": {"id": 1}}`},
		{name: "bad pro flag", data: `{"/a/": {"id": 1, "pro": "maybe"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTree([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidTree)
		})
	}
}

func TestSplit(t *testing.T) {
	parent, leaf := Split("/a/b/")
	assert.Equal(t, "/a/", parent)
	assert.Equal(t, "b", leaf)

	parent, leaf = Split("/a/")
	assert.Equal(t, "/", parent)
	assert.Equal(t, "a", leaf)

	parent, leaf = Split("/")
	assert.Equal(t, "/", parent)
	assert.Empty(t, leaf)

	assert.Equal(t, "/", DirOf("/"))
	assert.Equal(t, "/x", DirOf("/x/"))
}

func TestParseListing(t *testing.T) {
	data := []byte(`{"status": 1, "message": [
		{"filepath": "/a/one.jpg", "hash": "h1"},
		{"filepath": "/a/two.jpg", "hash": "h2", "urls": ["s", "m", "l"]},
		{"filepath": "/a/bad.jpg"},
		{"filepath": "/a/one.jpg", "hash": "dup"},
		"garbage"
	]}`)

	variants := func(p string) []string {
		return []string{"site" + p + "/_small.jpg", "site" + p + "/_full.jpg"}
	}

	listing, err := ParseListing("/a/", data, variants)
	require.NoError(t, err)
	require.Len(t, listing.Files, 2)
	assert.Len(t, listing.Skipped, 3)
	assert.Equal(t, []string{"/a/bad.jpg"}, listing.Retained)

	one := listing.Files[0]
	assert.Equal(t, "one.jpg", one.Name())
	assert.Equal(t, "h1", one.Fingerprint)
	assert.Equal(t, "site/a/one.jpg/_small.jpg", one.Smallest())
	assert.Equal(t, "site/a/one.jpg/_full.jpg", one.Largest())
	assert.JSONEq(t, `{"filepath": "/a/one.jpg", "hash": "h1"}`, string(one.Raw))

	two := listing.Files[1]
	assert.Equal(t, "s", two.Smallest())
	assert.Equal(t, "l", two.Largest())
}

func TestParseListing_RetainsNamedRejects(t *testing.T) {
	data := []byte(`{"status": 1, "message": [
		{"filepath": "/a/empty.jpg", "hash": ""},
		{"filepath": "/a/typed.jpg", "hash": 7},
		{"filepath": "relative.jpg", "hash": "h"},
		{"hash": "h"}
	]}`)

	listing, err := ParseListing("/a/", data, nil)
	require.NoError(t, err)
	assert.Empty(t, listing.Files)
	assert.Len(t, listing.Skipped, 4)
	assert.Equal(t, []string{"/a/empty.jpg", "/a/typed.jpg"}, listing.Retained)
}

func TestParseListing_RemoteError(t *testing.T) {
	_, err := ParseListing("/a/", []byte(`{"status": 0, "message": "forbidden"}`), nil)

	var apiErr *types.RemoteAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "forbidden", apiErr.Message)
	assert.Equal(t, "/a/", apiErr.Folder)
}

func TestParseListing_Malformed(t *testing.T) {
	_, err := ParseListing("/a/", []byte(`{"message": []}`), nil)
	assert.Error(t, err)

	_, err = ParseListing("/a/", []byte(`{"status": 1, "message": "text"}`), nil)
	assert.Error(t, err)

	listing, err := ParseListing("/a/", []byte(`{"status": 1}`), nil)
	require.NoError(t, err)
	assert.Empty(t, listing.Files)
}

func TestFile_NoVariants(t *testing.T) {
	var f File
	assert.Empty(t, f.Largest())
	assert.Empty(t, f.Smallest())
}

func TestFile_Descriptor(t *testing.T) {
	f := File{Path: "/a/p.jpg", Fingerprint: "h"}
	assert.JSONEq(t, `{"filepath":"/a/p.jpg","hash":"h"}`, string(f.Descriptor()))

	f.Raw = []byte(`{"filepath":"/a/p.jpg","hash":"h","x":1}`)
	assert.Equal(t, string(f.Raw), string(f.Descriptor()))
}
