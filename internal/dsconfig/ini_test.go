package dsconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenParseRoundTrip(t *testing.T) {
	doc := NewDoc()
	sec := doc.Section("/Script/Astro.AstroServerSettings")
	sec.Set("ServerName", "Test Server")
	sec.Set("MaximumPlayerCount", "8")
	sec.SetList("PlayerProperties", []string{
		`(PlayerFirstJoinName="A",PlayerCategory=Admin,PlayerGuid="1",PlayerRecentJoinName="A")`,
		`(PlayerFirstJoinName="B",PlayerCategory=Unlisted,PlayerGuid="2",PlayerRecentJoinName="B")`,
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "AstroServerSettings.ini")
	require.NoError(t, WriteFile(path, doc))

	reparsed, err := ParseDoc(path)
	require.NoError(t, err)

	s := reparsed.Section("/Script/Astro.AstroServerSettings")
	name, ok := s.Get("ServerName")
	require.True(t, ok)
	assert.Equal(t, "Test Server", name.String())

	pp, ok := s.Get("PlayerProperties")
	require.True(t, ok)
	assert.True(t, pp.IsList())
	assert.Len(t, pp.Strings(), 2)
}

func TestSingleElementListCollapsesToScalar(t *testing.T) {
	doc := NewDoc()
	sec := doc.Section("X")
	sec.SetList("PlayerProperties", []string{"only-one"})

	v, ok := sec.Get("PlayerProperties")
	require.True(t, ok)
	assert.False(t, v.IsList())
	assert.Equal(t, "only-one", v.String())
}

func TestDuplicateKeysCollapseIntoList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.ini")
	content := "[Section]\nKey=one\nKey=two\nKey=three\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	doc, err := ParseDoc(path)
	require.NoError(t, err)

	v, ok := doc.Section("Section").Get("Key")
	require.True(t, ok)
	assert.True(t, v.IsList())
	assert.Equal(t, []string{"one", "two", "three"}, v.Strings())
}

func TestBooleanTokenFolding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bool.ini")
	content := "[S]\nA=yes\nB=no\nC=On\nD=Off\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	doc, err := ParseDoc(path)
	require.NoError(t, err)
	s := doc.Section("S")

	a, _ := s.Get("A")
	b, _ := s.Get("B")
	c, _ := s.Get("C")
	d, _ := s.Get("D")
	assert.Equal(t, "True", a.String())
	assert.Equal(t, "False", b.String())
	assert.Equal(t, "True", c.String())
	assert.Equal(t, "False", d.String())
}

func TestGlobalSectionIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noglobal.ini")
	content := "Orphan=value\n[Section]\nKey=val\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	doc, err := ParseDoc(path)
	require.NoError(t, err)
	assert.False(t, doc.HasSection(""))
	v, ok := doc.Section("Section").Get("Key")
	require.True(t, ok)
	assert.Equal(t, "val", v.String())
}

func TestFakeFloatRoundTrip(t *testing.T) {
	s := encodeFakeFloat(30)
	assert.Equal(t, "30.000000", s)

	n, err := decodeFakeFloat(s)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}
