// Package explain turns the outcome of a mock or live call into a short
// localized narrative for people learning how APIs behave.
package explain

import (
	"net/http"
	"strconv"

	"github.com/funnyzak/mockflow/pkg/endpoint"
	"github.com/funnyzak/mockflow/pkg/i18n"
)

// Kind names the outcome being explained.
type Kind string

const (
	KindMock        Kind = "mock"
	KindRateLimited Kind = "rate_limited"
	KindLiveOK      Kind = "live_ok"
	KindLiveRefused Kind = "live_refused"
	KindLiveFailure Kind = "live_failure"
)

// Explanation 四段式说明文本
type Explanation struct {
	Kind      Kind   `json:"kind"`
	Concept   string `json:"concept"`
	Scenario  string `json:"scenario"`
	Action    string `json:"action"`
	Breakdown string `json:"breakdown"`
}

// Explainer renders explanations in one locale.
type Explainer struct {
	intl   *i18n.Translator
	locale string
}

// New creates an Explainer. An empty locale uses the translator default.
func New(translator *i18n.Translator, locale string) *Explainer {
	if locale == "" && translator != nil {
		locale = translator.DefaultLocale()
	}
	return &Explainer{intl: translator, locale: locale}
}

// WithLocale returns a copy rendering in locale.
func (e *Explainer) WithLocale(locale string) *Explainer {
	if locale == "" {
		return e
	}
	return &Explainer{intl: e.intl, locale: locale}
}

// Locale returns the locale used for rendering.
func (e *Explainer) Locale() string {
	return e.locale
}

// Mock explains a simulated call of ep that answered with status.
func (e *Explainer) Mock(ep *endpoint.Endpoint, status int) Explanation {
	args := map[string]string{
		"name":   ep.Name,
		"path":   ep.Path,
		"status": strconv.Itoa(status),
	}
	if status == http.StatusTooManyRequests {
		return e.render(KindRateLimited, args)
	}
	return e.render(KindMock, args)
}

// Live explains a live request to url. failed reports a transport failure,
// in which case status is ignored.
func (e *Explainer) Live(url string, status int, failed bool) Explanation {
	args := map[string]string{
		"url":    url,
		"status": strconv.Itoa(status),
	}
	switch {
	case failed:
		return e.render(KindLiveFailure, args)
	case status >= 200 && status < 300:
		return e.render(KindLiveOK, args)
	default:
		return e.render(KindLiveRefused, args)
	}
}

func (e *Explainer) render(kind Kind, args map[string]string) Explanation {
	prefix := "explain." + string(kind) + "."
	return Explanation{
		Kind:      kind,
		Concept:   e.text(prefix+"concept", args),
		Scenario:  e.text(prefix+"scenario", args),
		Action:    e.text(prefix+"action", args),
		Breakdown: e.text(prefix+"breakdown", args),
	}
}

func (e *Explainer) text(key string, args map[string]string) string {
	if e.intl == nil {
		return key
	}
	return e.intl.Format(e.locale, key, args)
}
