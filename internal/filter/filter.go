// Package filter applies an ordered chain of regex replacement rules to
// outgoing message lists. Rules use JavaScript-style flag strings so they
// stay portable across config written for other frontends.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"director/internal/llm"
	"director/internal/logging"
)

// Rule is a single pattern replacement. Replacement may reference capture
// groups as $1, $2, ... or the whole match as $& (translated to Go's $0).
type Rule struct {
	Label       string `yaml:"label,omitempty" json:"label,omitempty"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Flags       string `yaml:"flags,omitempty" json:"flags,omitempty"`
	Replacement string `yaml:"replacement" json:"replacement"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
}

// Chain applies its rules in order to every message. A Chain is cheap to
// construct; patterns are compiled per Apply call so edited rules take
// effect immediately without invalidation bookkeeping.
type Chain struct {
	Rules []Rule
}

// NewChain creates a chain over the given rules.
func NewChain(rules []Rule) *Chain {
	return &Chain{Rules: rules}
}

// Apply runs every enabled rule against every message, in rule order, and
// returns the resulting list. Messages the chain does not change are
// returned as-is. A rule that fails to compile is logged once and skipped;
// a broken rule never blocks the pipeline.
func (c *Chain) Apply(messages []llm.Message) []llm.Message {
	if len(c.Rules) == 0 || len(messages) == 0 {
		return messages
	}

	type compiled struct {
		re          *regexp.Regexp
		replacement string
	}
	var active []compiled
	for _, rule := range c.Rules {
		if !rule.Enabled || rule.Pattern == "" {
			continue
		}
		re, err := compileRule(rule)
		if err != nil {
			logging.FilterWarn("skipping rule %q: %v", ruleName(rule), err)
			continue
		}
		active = append(active, compiled{re: re, replacement: translateReplacement(rule.Replacement)})
	}
	if len(active) == 0 {
		return messages
	}

	out := make([]llm.Message, len(messages))
	changed := 0
	for i, msg := range messages {
		text := msg.Content
		for _, rule := range active {
			text = rule.re.ReplaceAllString(text, rule.replacement)
		}
		if text == msg.Content {
			out[i] = msg
			continue
		}
		out[i] = llm.Message{Role: msg.Role, Content: text}
		changed++
	}
	if changed > 0 {
		logging.Filter("applied %d rules, %d/%d messages changed", len(active), changed, len(messages))
	}
	return out
}

// compileRule builds the Go regexp for a rule, mapping JavaScript-style
// flags to inline flags. The g flag is implicit: ReplaceAllString always
// replaces every occurrence.
func compileRule(rule Rule) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range rule.Flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g':
			// implicit
		default:
			return nil, fmt.Errorf("unsupported flag %q", string(f))
		}
	}

	pattern := rule.Pattern
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

// translateReplacement converts the JavaScript whole-match reference $& to
// Go's $0.
func translateReplacement(replacement string) string {
	return strings.ReplaceAll(replacement, "$&", "$0")
}

func ruleName(rule Rule) string {
	if rule.Label != "" {
		return rule.Label
	}
	return rule.Pattern
}
