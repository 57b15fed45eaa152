package endpoint

import (
	"fmt"
	"strings"
)

// SnippetKind names a client code snippet flavour.
type SnippetKind string

const (
	SnippetFetch  SnippetKind = "fetch"
	SnippetCurl   SnippetKind = "curl"
	SnippetReact  SnippetKind = "react"
	SnippetNextJS SnippetKind = "nextjs"
)

// DefaultBaseURL is the origin snippets point at when none is configured.
const DefaultBaseURL = "http://localhost:3000"

// SnippetKinds lists the supported kinds in display order.
func SnippetKinds() []SnippetKind {
	return []SnippetKind{SnippetFetch, SnippetCurl, SnippetReact, SnippetNextJS}
}

// Snippet renders client code that calls the endpoint at baseURL.
func Snippet(kind SnippetKind, baseURL string, e *Endpoint) (string, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	fullPath := strings.TrimRight(baseURL, "/") + e.Path

	switch SnippetKind(strings.ToLower(string(kind))) {
	case SnippetFetch:
		return fmt.Sprintf("fetch('%s', {\n  method: '%s',\n  headers: { 'Content-Type': '%s' }\n}).then(res => res.json())",
			fullPath, e.Method, e.ContentType), nil
	case SnippetCurl:
		return fmt.Sprintf("curl -X %s \"%s\" -H \"Content-Type: %s\"", e.Method, fullPath, e.ContentType), nil
	case SnippetReact:
		return fmt.Sprintf("import { useState, useEffect } from 'react';\n\n"+
			"function MyComponent() {\n"+
			"  const [data, setData] = useState(null);\n\n"+
			"  useEffect(() => {\n"+
			"    fetch('%s')\n"+
			"      .then(res => res.json())\n"+
			"      .then(data => setData(data));\n"+
			"  }, []);\n\n"+
			"  return <div>{JSON.stringify(data)}</div>;\n"+
			"}", fullPath), nil
	case SnippetNextJS:
		return fmt.Sprintf("// Dynamic Server Component\n"+
			"export default async function Page() {\n"+
			"  const res = await fetch('%s', { cache: 'no-store' });\n"+
			"  const data = await res.json();\n\n"+
			"  return <pre>{JSON.stringify(data, null, 2)}</pre>;\n"+
			"}", fullPath), nil
	default:
		return "", fmt.Errorf("unknown snippet kind %q", kind)
	}
}
