package extractor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractorFlattened(t *testing.T) {
	ext, err := ParseExtractor([]byte(`{"name":"ver","part":"body","regex":["v(\\d+)"],"group":1,"case-insensitive":true}`))
	require.NoError(t, err)

	assert.Equal(t, "ver", ext.Name)
	assert.Equal(t, PartBody, ext.Part)
	assert.True(t, ext.CaseInsensitive)
	r, ok := ext.Type.(*Regex)
	require.True(t, ok)
	assert.Equal(t, []string{`v(\d+)`}, r.Regex)
	require.NotNil(t, r.Group)
	assert.Equal(t, 1, *r.Group)
}

func TestParseExtractorTagged(t *testing.T) {
	ext, err := ParseExtractor([]byte(`{"type":"xpath","xpath":["//title"],"attribute":"lang","internal":true}`))
	require.NoError(t, err)
	assert.Equal(t, PartResponse, ext.Part)
	assert.True(t, ext.Internal)
	x, ok := ext.Type.(*XPath)
	require.True(t, ok)
	assert.Equal(t, "lang", x.Attribute)
}

func TestParseExtractorNested(t *testing.T) {
	ext, err := ParseExtractor([]byte(`{"name":"ver","json":{"json":["$.version"],"group":-1}}`))
	require.NoError(t, err)
	j, ok := ext.Type.(*JSONPath)
	require.True(t, ok)
	assert.Equal(t, []string{"$.version"}, j.JSON)
	require.NotNil(t, j.Group)
	assert.Equal(t, -1, *j.Group)

	_, err = ParseExtractor([]byte(`{"regex":{"regex":["a"],"attribute":"x"}}`))
	assert.True(t, errors.Is(err, ErrInvalidDefinition))

	_, err = ParseExtractor([]byte(`{"regex":{"regex":["a"]},"group":1}`))
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
}

func TestParseExtractorStrict(t *testing.T) {
	cases := map[string]string{
		"unknown payload field": `{"regex":["a"],"attribute":"x"}`,
		"unknown top field":     `{"json":["$.a"],"color":"red"}`,
		"two types":             `{"regex":["a"],"dsl":["b"]}`,
		"no type":               `{"name":"x"}`,
		"bad tag":               `{"type":"sql","sql":["x"]}`,
		"missing payload":       `{"type":"kval","group":1}`,
		"bad part":              `{"part":"footer","regex":["a"]}`,
		"negative regex group":  `{"regex":["a"],"group":-1}`,
		"not an object":         `["regex"]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseExtractor([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDefinition))
		})
	}
}

func TestParseExtractorYAML(t *testing.T) {
	doc := `
name: cookie
part: header
kval:
  - PHPSESSID
group: -1
`
	ext, err := ParseExtractorYAML([]byte(doc))
	require.NoError(t, err)
	kv, ok := ext.Type.(*KVal)
	require.True(t, ok)
	assert.Equal(t, []string{"PHPSESSID"}, kv.KVal)
	assert.Equal(t, -1, *kv.Group)
	assert.Equal(t, PartHeader, ext.Part)
}

func TestExtractorJSONRoundTrip(t *testing.T) {
	orig := &Extractor{Name: "t", Part: PartBody, Type: &DSL{DSL: []string{"length"}}, CaseInsensitive: true}
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back Extractor
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, orig.Equal(&back))
}

func TestExtractorEqualSetSemantics(t *testing.T) {
	a := &Extractor{Type: &JSONPath{JSON: []string{"$.a", "$.b"}}}
	b := &Extractor{Type: &JSONPath{JSON: []string{"$.b", "$.a", "$.a"}}}
	assert.True(t, a.Equal(b))

	// 正则模式有序
	r1 := &Extractor{Type: &Regex{Regex: []string{"a", "b"}}}
	r2 := &Extractor{Type: &Regex{Regex: []string{"b", "a"}}}
	assert.False(t, r1.Equal(r2))

	g0 := &Extractor{Type: &Regex{Regex: []string{"a"}, Group: intPtr(0)}}
	gNil := &Extractor{Type: &Regex{Regex: []string{"a"}}}
	assert.False(t, g0.Equal(gNil))

	assert.False(t, a.Equal(&Extractor{Type: &DSL{DSL: []string{"$.a", "$.b"}}}))
}

func TestEqualIgnoresCompiledState(t *testing.T) {
	ext := &Extractor{Type: &Regex{Regex: []string{"a"}}}
	c := mustCompile(t, ext)
	def := c.Definition()
	assert.True(t, ext.Equal(&def))
}
