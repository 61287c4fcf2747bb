package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

func intPtr(i int) *int { return &i }

func mustCompile(t *testing.T, ext *Extractor) *Compiled {
	t.Helper()
	c, err := Compile(ext)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func TestRegexGroupExtraction(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`version=(\d+\.\d+)`}, Group: intPtr(1)}})

	values, versions := c.Extract("version=3.2;ok", nil)
	assert.True(t, values.Equal(utils.NewStringSet("3.2")))
	assert.Empty(t, versions)
}

func TestRegexAllMatchesAndDedup(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`v(\d)`, `id=(\w+)`}, Group: intPtr(1)}})

	values, _ := c.Extract("v1 v2 v1 id=abc v3", nil)
	assert.Equal(t, []string{"1", "2", "3", "abc"}, values.Sorted())
}

func TestRegexWholeMatchByDefault(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`nginx/[\d.]+`}}})

	values, _ := c.Extract("Server: nginx/1.25.3\r\nVia: nginx/1.25.3", nil)
	assert.Equal(t, []string{"nginx/1.25.3"}, values.Sorted())
}

func TestRegexSkipsMissingGroups(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`a(b)?c`}, Group: intPtr(1)}})
	values, _ := c.Extract("ac abc", nil)
	assert.Equal(t, []string{"b"}, values.Sorted())

	c = mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`abc`}, Group: intPtr(3)}})
	values, _ = c.Extract("abc", nil)
	assert.Zero(t, values.Len())
}

func TestRegexCaseInsensitive(t *testing.T) {
	ext := &Extractor{Type: &Regex{Regex: []string{`server: (\S+)`}, Group: intPtr(1)}}
	values, _ := mustCompile(t, ext).Extract("SERVER: Apache", nil)
	assert.Zero(t, values.Len())

	ext.CaseInsensitive = true
	values, _ = mustCompile(t, ext).Extract("SERVER: Apache", nil)
	assert.True(t, values.Has("Apache"))
}

func TestRegexVersionLastMatchWins(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`(?<name>\w+)/(\d+)\.(\d+)`}}})
	// 命名组编号排在匿名组之后
	spec := VersionSpec{"product": "${name}", "version": "$1.$2", "empty": "$9"}

	values, versions := c.Extract("nginx/1.2 openresty/3.4", spec)
	assert.Equal(t, 2, values.Len())
	assert.Equal(t, map[string]string{"product": "openresty", "version": "3.4"}, versions)
}

func TestCompileInvalidPattern(t *testing.T) {
	ext := &Extractor{Name: "broken", Type: &Regex{Regex: []string{`ok`, `(unclosed`, `also-ok`}}}

	c, err := Compile(ext)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, ErrCompile))

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Index)
	assert.Equal(t, "(unclosed", ce.Pattern)
}

func TestCompileCountMatchesPatterns(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`a`, `b`, `c`}}})
	assert.Equal(t, 3, c.Len())

	c = mustCompile(t, &Extractor{Type: &DSL{DSL: []string{`length`}}})
	assert.Equal(t, 0, c.Len())

	_, err := Compile(&Extractor{})
	assert.True(t, errors.Is(err, ErrCompile))
}

func TestRecompileProducesNewHandle(t *testing.T) {
	ext := &Extractor{Type: &Regex{Regex: []string{`a`}}}
	first := mustCompile(t, ext)
	second := mustCompile(t, ext)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Len(), second.Len())
}

func TestJSONPathExtraction(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &JSONPath{JSON: []string{`$.items[*].name`}}})

	values, versions := c.Extract(`{"items":[{"name":"a"},{"name":"b"}]}`, nil)
	assert.True(t, values.Has(`"a"`))
	assert.True(t, values.Has(`"b"`))
	assert.Empty(t, versions)
}

func TestJSONPathNonJSONCorpus(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &JSONPath{JSON: []string{`$.a`}}})

	values, versions := c.Extract("version=3.2;ok", VersionSpec{"v": "$1"})
	assert.Zero(t, values.Len())
	assert.Empty(t, versions)
}

func TestJSONPathInvalidPathSkipped(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &JSONPath{JSON: []string{`$.items[`, `$.port`}}})

	values, _ := c.Extract(`{"port":8080,"obj":{"b":1,"a":2}}`, nil)
	assert.Equal(t, []string{"8080"}, values.Sorted())

	c = mustCompile(t, &Extractor{Type: &JSONPath{JSON: []string{`$.obj`}}})
	values, _ = c.Extract(`{"obj":{"b":1,"a":2}}`, nil)
	assert.Equal(t, []string{`{"a":2,"b":1}`}, values.Sorted())
}

func TestJSONPathIgnoresGroup(t *testing.T) {
	corpus := `{"items":[{"name":"a"},{"name":"b"},{"name":"c"}]}`

	for _, g := range []int{0, -1, 7} {
		c := mustCompile(t, &Extractor{Type: &JSONPath{JSON: []string{`$.items[*].name`}, Group: intPtr(g)}})
		values, _ := c.Extract(corpus, nil)
		assert.Equal(t, []string{`"a"`, `"b"`, `"c"`}, values.Sorted(), "group %d", g)
	}
}

func TestJSONPathKeepsHTMLCharacters(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &JSONPath{JSON: []string{`$.x[*]`}}})

	values, _ := c.Extract(`{"x":["<b>&",1.5,2]}`, nil)
	assert.Equal(t, []string{`"<b>&"`, "1.5", "2"}, values.Sorted())
}

const headerCorpus = "HTTP/1.1 200 OK\r\n" +
	"Server: nginx\r\n" +
	"X-Powered-By: PHP/8.1\r\n" +
	"Set-Cookie: PHPSESSID=abc123; path=/\r\n" +
	"Set-Cookie: lang=en\r\n" +
	"\r\n" +
	"body: not a header"

func TestKValExtraction(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &KVal{KVal: []string{"x-powered-by", "X_Powered_By", "PHPSESSID", "body"}}})
	values, _ := c.Extract(headerCorpus, nil)
	assert.Equal(t, []string{"PHP/8.1", "abc123"}, values.Sorted())

	c = mustCompile(t, &Extractor{CaseInsensitive: true, Type: &KVal{KVal: []string{"x-powered-by", "phpsessid"}}})
	values, _ = c.Extract(headerCorpus, nil)
	assert.Equal(t, []string{"abc123", "php/8.1"}, values.Sorted())
}

func TestKValGroup(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &KVal{KVal: []string{"Set-Cookie"}, Group: intPtr(0)}})
	values, _ := c.Extract(headerCorpus, nil)
	assert.Equal(t, []string{"PHPSESSID=abc123; path=/"}, values.Sorted())

	c = mustCompile(t, &Extractor{Type: &KVal{KVal: []string{"Set-Cookie"}, Group: intPtr(-1)}})
	values, _ = c.Extract(headerCorpus, nil)
	assert.Equal(t, []string{"lang=en"}, values.Sorted())
}

const htmlCorpus = `<html><head><title>Grafana</title>
<meta name="generator" content="WordPress 6.4"></head>
<body><a href="/login">Login</a><a href="/admin">Admin</a></body></html>`

func TestXPathHTML(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &XPath{XPath: []string{`//title`, `//[broken`}}})
	values, _ := c.Extract(htmlCorpus, nil)
	assert.Equal(t, []string{"Grafana"}, values.Sorted())

	c = mustCompile(t, &Extractor{Type: &XPath{XPath: []string{`//a`}, Attribute: "href"}})
	values, _ = c.Extract(htmlCorpus, nil)
	assert.Equal(t, []string{"/admin", "/login"}, values.Sorted())

	c = mustCompile(t, &Extractor{CaseInsensitive: true, Type: &XPath{XPath: []string{`//meta[@name='generator']`}, Attribute: "content"}})
	values, _ = c.Extract(htmlCorpus, nil)
	assert.Equal(t, []string{"wordpress 6.4"}, values.Sorted())
}

func TestXPathXML(t *testing.T) {
	corpus := `<?xml version="1.0"?><root><server vendor="minio">RELEASE.2024</server></root>`

	c := mustCompile(t, &Extractor{Type: &XPath{XPath: []string{`//server`}}})
	values, _ := c.Extract(corpus, nil)
	assert.Equal(t, []string{"RELEASE.2024"}, values.Sorted())

	c = mustCompile(t, &Extractor{Type: &XPath{XPath: []string{`//server`}, Attribute: "vendor"}})
	values, _ = c.Extract(corpus, nil)
	assert.Equal(t, []string{"minio"}, values.Sorted())
}

func TestDSLExtraction(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &DSL{DSL: []string{
		`version`,
		`toupper(name)`,
		`port + 1`,
		`missing_param`,
		`(((`,
		`contains(body, "grafana")`,
	}}})

	values, versions := c.Extract(`{"name":"grafana","version":"10.2","port":3000}`, nil)
	assert.Equal(t, []string{"10.2", "3001", "GRAFANA", "true"}, values.Sorted())
	assert.Empty(t, versions)
}

func TestDSLPlainCorpus(t *testing.T) {
	c := mustCompile(t, &Extractor{Type: &DSL{DSL: []string{`length`, `mmh3("hello")`, `regex("v([0-9]+)", body)`}}})

	values, _ := c.Extract("v42", nil)
	assert.True(t, values.Has("3"))
	assert.True(t, values.Has("613153351"))
	assert.True(t, values.Has("42"))
}

func TestExtractResponsePart(t *testing.T) {
	resp := Response{Header: "Server: nginx\r\n", Body: `<title>Demo</title>`}

	c := mustCompile(t, &Extractor{Part: PartHeader, Type: &Regex{Regex: []string{`<title>`}}})
	values, _ := c.ExtractResponse(resp, nil)
	assert.Zero(t, values.Len())

	c = mustCompile(t, &Extractor{Part: PartBody, Type: &XPath{XPath: []string{`//title`}}})
	values, _ = c.ExtractResponse(resp, nil)
	assert.True(t, values.Has("Demo"))

	c = mustCompile(t, &Extractor{Type: &Regex{Regex: []string{`nginx|Demo`}}})
	values, _ = c.ExtractResponse(resp, nil)
	assert.Equal(t, []string{"Demo", "nginx"}, values.Sorted())
}

func TestResponsePrefersRaw(t *testing.T) {
	raw := "a\n\nb"
	resp := Response{Header: "a", Body: "b", Raw: raw}
	assert.Equal(t, raw, resp.Select(PartResponse))
	assert.Equal(t, raw, resp.Select(PartRaw))
	assert.Equal(t, "a", resp.Select(PartHeader))

	c := mustCompile(t, &Extractor{Type: &Regex{Regex: []string{"a\n\nb"}}})
	values, _ := c.ExtractResponse(resp, nil)
	assert.Equal(t, []string{raw}, values.Sorted())

	joined := Response{Header: "h\r\n", Body: "b"}
	assert.Equal(t, "h\r\n\r\nb", joined.Select(PartResponse))
}

func TestFilterExternal(t *testing.T) {
	internal := mustCompile(t, &Extractor{Name: "token", Internal: true, Type: &Regex{Regex: []string{`t=\w+`}}})
	external := mustCompile(t, &Extractor{Name: "title", Type: &Regex{Regex: []string{`title`}}})

	resp := Response{Body: "t=abc title"}
	results := FilterExternal([]Result{internal.Run(resp, nil), external.Run(resp, nil)})
	require.Len(t, results, 1)
	assert.Equal(t, "title", results[0].Name)
}
