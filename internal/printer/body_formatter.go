package printer

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	nethtml "golang.org/x/net/html"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
)

// maxIndentBytes bounds the JSON documents that get re-indented.
const maxIndentBytes = 1 << 20

type bodyFormatter struct {
	cfg    *config.BodyViewConfig
	logger logger.Logger
	t      func(string) string
}

type formattedBody struct {
	Text    string
	Notices []string
}

func newBodyFormatter(cfg *config.BodyViewConfig, log logger.Logger, t func(string) string) *bodyFormatter {
	if cfg == nil {
		cfg = &config.BodyViewConfig{}
	}
	return &bodyFormatter{cfg: cfg, logger: log, t: t}
}

// Format pretty prints body according to its media type and trims it to the
// configured preview size.
func (f *bodyFormatter) Format(contentType string, body []byte) formattedBody {
	if len(body) == 0 {
		return formattedBody{}
	}
	res := formattedBody{Text: string(body)}
	if f.cfg.Enable {
		mediaType := normalizeMediaType(contentType)
		if r, ok := f.formatJSON(mediaType, body); ok {
			res = r
		} else if r, ok := f.formatXML(mediaType, body); ok {
			res = r
		} else if r, ok := f.formatHTML(mediaType, body); ok {
			res = r
		}
	}
	return f.truncate(res)
}

func (f *bodyFormatter) truncate(res formattedBody) formattedBody {
	limit := f.cfg.MaxPreviewBytes
	if limit <= 0 || len(res.Text) <= limit {
		return res
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(res.Text[cut]) {
		cut--
	}
	notice := fmt.Sprintf(f.t(keyBodyTruncate),
		humanize.Bytes(uint64(cut)), humanize.Bytes(uint64(len(res.Text))))
	res.Text = res.Text[:cut]
	res.Notices = append(res.Notices, notice)
	return res
}

func (f *bodyFormatter) formatJSON(mediaType string, body []byte) (formattedBody, bool) {
	if !f.cfg.JSON.Enable || !looksLikeJSON(mediaType, body) {
		return formattedBody{}, false
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return formattedBody{}, false
	}
	if !f.cfg.JSON.Pretty {
		return formattedBody{Text: string(body)}, true
	}
	if len(trimmed) > maxIndentBytes {
		notice := fmt.Sprintf(f.t(keyJSONIndentSkipped), humanize.Bytes(maxIndentBytes))
		return formattedBody{Text: string(body), Notices: []string{notice}}, true
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		f.logger.Debug("json indent failed", "error", err)
		return formattedBody{}, false
	}
	return formattedBody{Text: buf.String()}, true
}

func (f *bodyFormatter) formatXML(mediaType string, body []byte) (formattedBody, bool) {
	if !f.cfg.XML.Enable || !strings.Contains(mediaType, "xml") {
		return formattedBody{}, false
	}
	if !f.cfg.XML.Pretty {
		return formattedBody{Text: string(body)}, true
	}
	formatted, err := prettyXML(body)
	if err != nil {
		f.logger.Debug("xml pretty failed", "error", err)
		return formattedBody{Text: string(body)}, true
	}
	return formattedBody{Text: formatted}, true
}

func (f *bodyFormatter) formatHTML(mediaType string, body []byte) (formattedBody, bool) {
	if !f.cfg.HTML.Enable {
		return formattedBody{}, false
	}
	if !strings.Contains(mediaType, "html") && !looksLikeHTML(body) {
		return formattedBody{}, false
	}
	if !f.cfg.HTML.Pretty {
		return formattedBody{Text: string(body)}, true
	}
	formatted, err := prettyHTML(body)
	if err != nil {
		f.logger.Debug("html pretty failed", "error", err)
		return formattedBody{Text: string(body)}, true
	}
	return formattedBody{Text: formatted}, true
}

func normalizeMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}

func looksLikeJSON(mediaType string, body []byte) bool {
	if strings.Contains(mediaType, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) < 5 {
		return false
	}
	head := strings.ToLower(string(trimmed[:5]))
	return strings.HasPrefix(head, "<html") || strings.HasPrefix(head, "<!doc")
}

func prettyXML(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var buf bytes.Buffer
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if err := encoder.EncodeToken(token); err != nil {
			return "", err
		}
	}
	if err := encoder.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func prettyHTML(data []byte) (string, error) {
	node, err := nethtml.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writeHTMLNode(&b, node, 0)
	return b.String(), nil
}

func writeHTMLNode(b *strings.Builder, node *nethtml.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch node.Type {
	case nethtml.DocumentNode:
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			writeHTMLNode(b, child, depth)
		}
	case nethtml.ElementNode:
		b.WriteString(indent + "<" + node.Data)
		for _, attr := range node.Attr {
			fmt.Fprintf(b, " %s=\"%s\"", attr.Key, html.EscapeString(attr.Val))
		}
		if isVoidElement(node.Data) {
			b.WriteString(" />\n")
			return
		}
		b.WriteString(">\n")
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			writeHTMLNode(b, child, depth+1)
		}
		if node.FirstChild != nil {
			b.WriteString(indent)
		}
		b.WriteString("</" + node.Data + ">\n")
	case nethtml.TextNode:
		if text := strings.TrimSpace(node.Data); text != "" {
			b.WriteString(indent + text + "\n")
		}
	case nethtml.CommentNode:
		b.WriteString(indent + "<!--" + strings.TrimSpace(node.Data) + "-->\n")
	}
}

func isVoidElement(tag string) bool {
	switch strings.ToLower(tag) {
	case "area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "source", "track", "wbr":
		return true
	}
	return false
}
