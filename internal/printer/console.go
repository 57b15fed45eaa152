package printer

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/pkg/i18n"
	"github.com/funnyzak/mockflow/pkg/request"
)

// ColorScheme color scheme
type ColorScheme struct {
	MethodGET    *color.Color
	MethodPOST   *color.Color
	MethodPUT    *color.Color
	MethodDELETE *color.Color
	MethodPATCH  *color.Color
	StatusOK     *color.Color
	StatusWarn   *color.Color
	StatusError  *color.Color
	HeaderKey    *color.Color
	HeaderValue  *color.Color
	Separator    *color.Color
	Timestamp    *color.Color
	BodyContent  *color.Color
	Notice       *color.Color
	Violation    *color.Color
	Label        *color.Color
	Query        *color.Color
}

// NewColorScheme creates a new color scheme
func NewColorScheme() *ColorScheme {
	return &ColorScheme{
		MethodGET:    color.New(color.FgBlue, color.Bold),
		MethodPOST:   color.New(color.FgGreen, color.Bold),
		MethodPUT:    color.New(color.FgYellow, color.Bold),
		MethodDELETE: color.New(color.FgRed, color.Bold),
		MethodPATCH:  color.New(color.FgMagenta, color.Bold),
		StatusOK:     color.New(color.FgGreen, color.Bold),
		StatusWarn:   color.New(color.FgYellow, color.Bold),
		StatusError:  color.New(color.FgRed, color.Bold),
		HeaderKey:    color.New(color.FgCyan),
		HeaderValue:  color.New(color.FgWhite),
		Separator:    color.New(color.FgYellow, color.Bold),
		Timestamp:    color.New(color.FgHiBlack),
		BodyContent:  color.New(color.FgWhite),
		Notice:       color.New(color.FgHiYellow, color.Bold),
		Violation:    color.New(color.FgHiRed),
		Label:        color.New(color.FgHiBlue, color.Bold),
		Query:        color.New(color.FgHiMagenta),
	}
}

// ConsolePrinter console printer
type ConsolePrinter struct {
	colors    *ColorScheme
	logger    logger.Logger
	formatter *bodyFormatter
	intl      *i18n.Translator
	locale    string

	mu  sync.Mutex
	out io.Writer
}

// NewConsolePrinter creates a new console printer
func NewConsolePrinter(log logger.Logger, cfg *config.BodyViewConfig, translator *i18n.Translator, locale string) *ConsolePrinter {
	if log == nil {
		log = logger.NewNop()
	}
	locale = strings.TrimSpace(locale)
	if locale == "" && translator != nil {
		locale = translator.DefaultLocale()
	}
	p := &ConsolePrinter{
		colors: NewColorScheme(),
		logger: log,
		intl:   translator,
		locale: locale,
		out:    os.Stdout,
	}
	p.formatter = newBodyFormatter(cfg, log, p.t)
	return p
}

// SetOutput 替换输出目标，便于测试
func (p *ConsolePrinter) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	p.mu.Lock()
	p.out = w
	p.mu.Unlock()
}

func (p *ConsolePrinter) t(key string) string {
	if p.intl == nil {
		return key
	}
	return p.intl.Text(p.locale, key)
}

// terminalWidth returns the width to lay out for, clamped to [40, 150].
// MOCKFLOW_TEST_WIDTH overrides detection.
func (p *ConsolePrinter) terminalWidth() int {
	width := 80
	if override := os.Getenv("MOCKFLOW_TEST_WIDTH"); override != "" {
		if w, err := strconv.Atoi(override); err == nil {
			width = w
		}
	} else if f, ok := p.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}
	switch {
	case width < 40:
		return 40
	case width > 150:
		return 150
	}
	return width
}

// wrapText wraps text on word boundaries to fit maxWidth display columns.
func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return []string{text}
	}

	var lines []string
	current := words[0]
	currentWidth := runewidth.StringWidth(current)
	for _, word := range words[1:] {
		w := runewidth.StringWidth(word)
		if currentWidth+1+w > maxWidth {
			lines = append(lines, current)
			current, currentWidth = word, w
			continue
		}
		current += " " + word
		currentWidth += 1 + w
	}
	return append(lines, current)
}

// PrintOutcome prints a completed call: summary, inbound request, response
// body, schema violations and the explanation.
func (p *ConsolePrinter) PrintOutcome(o *runner.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	width := p.terminalWidth()
	p.printSummary(nextCallNumber(), o, width)
	if o.Request != nil {
		p.printRequest(o.Request, width)
	}
	p.printBody(o.Result.ContentType(), o.Result.Data.Body(), false)
	fmt.Fprintln(p.out)
	p.printValidation(o)
	p.printExplanation(o, width)
	return nil
}

func (p *ConsolePrinter) printSummary(n uint64, o *runner.Outcome, width int) {
	separator := strings.Repeat("-", width)
	timestamp := time.Now()
	if o.Entry != nil && !o.Entry.Timestamp.IsZero() {
		timestamp = o.Entry.Timestamp.Local()
	}

	p.colors.Separator.Fprintln(p.out, separator)
	p.colors.Separator.Fprintf(p.out, p.t(keySummaryTitle), n)
	fmt.Fprint(p.out, "  ")
	p.colors.Timestamp.Fprintln(p.out, timestamp.Format(time.RFC3339))

	fields := []string{}
	add := func(key string, value string) {
		fields = append(fields, p.t(key)+": "+value)
	}
	add(keyMetadataEndpoint, p.colors.Label.Sprint(o.Label()))
	add(keyMetadataSource, p.t(keySourcePrefix+o.Source))
	add(keyMetadataStatus, p.statusColor(o.Result.Status).Sprint(o.Result.Status))
	add(keyMetadataLatency, o.Result.Elapsed.Round(time.Millisecond).String())
	if ct := o.Result.ContentType(); ct != "" {
		add(keyMetadataContentType, ct)
	}
	add(keyMetadataSize, humanize.Bytes(uint64(len(o.Result.Data.Raw()))))
	if o.Result.VariantID != "" {
		add(keyMetadataVariant, o.Result.VariantID)
	}
	if d := o.Result.RateLimit; d != nil {
		add(keyMetadataRateLimit, fmt.Sprintf("%d/%d", d.Count, d.Limit))
	}
	if o.Attempts > 1 {
		add(keyMetadataAttempts, strconv.Itoa(o.Attempts))
	}
	if o.Request != nil && o.Request.RemoteAddr != "" {
		add(keyMetadataRemote, o.Request.RemoteAddr)
	}
	if o.Error != "" {
		add(keyMetadataError, p.colors.StatusError.Sprint(o.Error))
	}
	fmt.Fprintln(p.out, strings.Join(fields, " | "))
	p.colors.Separator.Fprintln(p.out, separator)
	fmt.Fprintln(p.out)
}

func (p *ConsolePrinter) printRequest(in *request.Incoming, width int) {
	method := strings.ToUpper(in.Method)
	p.methodColor(method).Fprintf(p.out, "%s ", method)
	path := in.Path
	if path == "" {
		path = "/"
	}
	fmt.Fprint(p.out, path)
	if in.Query != "" {
		fmt.Fprint(p.out, "?")
		p.colors.Query.Fprint(p.out, in.Query)
	}
	proto := in.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(p.out, " %s\n", proto)

	p.printHeaders(in.Headers, width)
	if in.Size > 0 {
		fmt.Fprintln(p.out)
		p.printBody(in.ContentType, in.Body, in.IsBinary)
	}
	fmt.Fprintln(p.out)
}

func (p *ConsolePrinter) printHeaders(headers http.Header, width int) {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		if !skipHeaders[strings.ToLower(key)] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.Join(headers[key], ", ")
		if sensitiveHeaders[strings.ToLower(key)] {
			value = "[REDACTED]"
		}
		prefix := key + ": "
		available := width - runewidth.StringWidth(prefix)
		if available < 20 {
			available = 20
		}
		lines := wrapText(value, available)
		p.colors.HeaderKey.Fprint(p.out, prefix)
		p.colors.HeaderValue.Fprintln(p.out, lines[0])
		indent := strings.Repeat(" ", runewidth.StringWidth(prefix))
		for _, line := range lines[1:] {
			fmt.Fprint(p.out, indent)
			p.colors.HeaderValue.Fprintln(p.out, line)
		}
	}
}

func (p *ConsolePrinter) printBody(contentType string, body []byte, binary bool) {
	size := humanize.Bytes(uint64(len(body)))
	if len(body) == 0 {
		p.colors.BodyContent.Fprintf(p.out, p.t(keyBodyEmpty)+"\n", size)
		return
	}
	if binary {
		p.colors.Notice.Fprintf(p.out, p.t(keyBodyBinary)+"\n", contentType, size)
		return
	}

	formatted := p.formatter.Format(contentType, body)
	for _, line := range strings.Split(formatted.Text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			fmt.Fprintln(p.out)
			continue
		}
		p.colors.BodyContent.Fprintln(p.out, line)
	}
	for _, notice := range formatted.Notices {
		p.colors.Notice.Fprintln(p.out, notice)
	}
}

func (p *ConsolePrinter) printValidation(o *runner.Outcome) {
	if len(o.Violations) > 0 {
		p.colors.Violation.Fprintln(p.out, p.t(keyValidationTitle))
		for _, v := range o.Violations {
			p.colors.Violation.Fprintf(p.out, "  - %s\n", v)
		}
		fmt.Fprintln(p.out)
		return
	}
	if ep := o.Endpoint; ep != nil && (ep.Schema != "" || ep.ResponseSchema != "") {
		p.colors.StatusOK.Fprintln(p.out, p.t(keyValidationPassed))
		fmt.Fprintln(p.out)
	}
}

func (p *ConsolePrinter) printExplanation(o *runner.Outcome, width int) {
	ex := o.Explanation
	if ex.Kind == "" {
		return
	}
	p.colors.Label.Fprintln(p.out, p.t(keyExplainTitle))
	for _, part := range []struct{ key, text string }{
		{keyExplainConcept, ex.Concept},
		{keyExplainScenario, ex.Scenario},
		{keyExplainAction, ex.Action},
		{keyExplainBreakdown, ex.Breakdown},
	} {
		prefix := "  " + p.t(part.key) + ": "
		lines := wrapText(part.text, width-runewidth.StringWidth(prefix))
		p.colors.HeaderKey.Fprint(p.out, prefix)
		fmt.Fprintln(p.out, lines[0])
		indent := strings.Repeat(" ", runewidth.StringWidth(prefix))
		for _, line := range lines[1:] {
			fmt.Fprintln(p.out, indent+line)
		}
	}
	fmt.Fprintln(p.out)
}

func (p *ConsolePrinter) statusColor(status int) *color.Color {
	switch {
	case status >= 500:
		return p.colors.StatusError
	case status >= 400:
		return p.colors.StatusWarn
	default:
		return p.colors.StatusOK
	}
}

func (p *ConsolePrinter) methodColor(method string) *color.Color {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return p.colors.MethodGET
	case http.MethodPost:
		return p.colors.MethodPOST
	case http.MethodPut:
		return p.colors.MethodPUT
	case http.MethodDelete:
		return p.colors.MethodDELETE
	case http.MethodPatch:
		return p.colors.MethodPATCH
	default:
		return color.New(color.FgWhite, color.Bold)
	}
}

var sensitiveHeaders = map[string]bool{
	"authorization":   true,
	"cookie":          true,
	"set-cookie":      true,
	"x-api-key":       true,
	"x-auth-token":    true,
	"x-csrf-token":    true,
	"x-session-token": true,
}

// hop-by-hop headers
var skipHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"te":                true,
	"trailer":           true,
	"transfer-encoding": true,
	"upgrade":           true,
}
