package live

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
)

// Path strategy modes.
const (
	PathModeAppend      = "append"
	PathModeStripPrefix = "strip_prefix"
	PathModeRewrite     = "rewrite"
)

// PathStrategy maps a mock endpoint path onto the live service. A nil
// strategy appends the path unchanged.
type PathStrategy struct {
	mode        string
	stripPrefix string
	rules       []rewriteRule
}

type rewriteRule struct {
	name    string
	prefix  string
	replace string
	expr    *regexp.Regexp
}

// NewPathStrategy builds a strategy from config. Append mode, an empty strip
// prefix and a rule set without usable rules all yield nil.
func NewPathStrategy(cfg config.PathStrategyConfig, log logger.Logger) *PathStrategy {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case PathModeStripPrefix:
		prefix := strings.TrimSpace(cfg.StripPrefix)
		if prefix == "" || prefix == "/" {
			return nil
		}
		return &PathStrategy{mode: PathModeStripPrefix, stripPrefix: cleanPath(prefix)}
	case PathModeRewrite:
		rules := compileRules(cfg.Rules, log)
		if len(rules) == 0 {
			return nil
		}
		return &PathStrategy{mode: PathModeRewrite, rules: rules}
	default:
		return nil
	}
}

// Resolve returns the live path for p and the name of the rule that changed
// it, or "" when p passed through untouched.
func (s *PathStrategy) Resolve(p string) (string, string) {
	clean := cleanPath(p)
	if s == nil {
		return clean, ""
	}

	switch s.mode {
	case PathModeStripPrefix:
		if clean == s.stripPrefix || strings.HasPrefix(clean, s.stripPrefix+"/") {
			return cleanPath(strings.TrimPrefix(clean, s.stripPrefix)), PathModeStripPrefix
		}
	case PathModeRewrite:
		for _, rule := range s.rules {
			if rule.expr != nil {
				if rule.expr.MatchString(clean) {
					return cleanPath(rule.expr.ReplaceAllString(clean, rule.replace)), rule.name
				}
				continue
			}
			if strings.HasPrefix(clean, rule.prefix) {
				return joinPath(rule.replace, strings.TrimPrefix(clean, rule.prefix)), rule.name
			}
		}
	}
	return clean, ""
}

func compileRules(defs []config.RewriteRuleConfig, log logger.Logger) []rewriteRule {
	var rules []rewriteRule
	for idx, def := range defs {
		match := strings.TrimSpace(def.Match)
		rule := rewriteRule{
			name:    def.Name,
			replace: strings.TrimSpace(def.Replace),
		}
		if rule.name == "" {
			rule.name = fmt.Sprintf("rewrite_rule_%d", idx+1)
		}
		if rule.replace == "" {
			rule.replace = "/"
		}

		if def.Regex {
			if match == "" {
				continue
			}
			expr, err := regexp.Compile(match)
			if err != nil {
				if log != nil {
					log.Warn("Invalid rewrite regex skipped", "rule", rule.name, "error", err)
				}
				continue
			}
			rule.expr = expr
		} else {
			rule.prefix = cleanPath(match)
			if rule.prefix == "/" {
				continue
			}
			rule.replace = cleanPath(rule.replace)
		}
		rules = append(rules, rule)
	}
	return rules
}

func cleanPath(p string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(p))
	if cleaned == "." {
		return "/"
	}
	return cleaned
}

func joinPath(base, rest string) string {
	rest = strings.TrimLeft(rest, "/")
	if rest == "" {
		return cleanPath(base)
	}
	return cleanPath(base + "/" + rest)
}
