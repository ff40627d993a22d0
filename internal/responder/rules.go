// Package responder produces the simulated agent replies shown in the chat.
package responder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Rule answers text containing any of its keywords.
type Rule struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Reply    string   `json:"reply"`
}

// Matches reports whether lowered text contains one of the rule's keywords.
func (r Rule) Matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// RuleSet is the full reply table: ordered keyword rules plus the fallback
// pools for unmatched text and images.
type RuleSet struct {
	Rules   []Rule   `json:"rules"`
	Generic []string `json:"generic"`
	Image   []string `json:"image"`
}

var (
	genericReplies = []string{
		"Thanks for reaching out! I'm here to help.",
		"Let me look into that for you.",
		"That's a great question! Here's what I can tell you:",
		"I understand your concern. Let me assist you with that.",
		"Is there anything else I can help you with?",
		"I'd be happy to provide more information about that.",
		"Let me connect you with the right information.",
		"That's definitely something we can help with!",
		"I see what you mean. Here's what I recommend:",
		"Thanks for your patience. Here's the solution:",
	}

	imageReplies = []string{
		"Thanks for sharing that image! I can see it clearly.",
		"Great screenshot! This helps me understand better.",
		"I've received your image. Let me take a look at this.",
		"Perfect! The image is very helpful for context.",
		"Thanks for the visual - this makes it much clearer!",
	}
)

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "greeting", Keywords: []string{"hello", "hi", "hey"}, Reply: "Hello! Great to hear from you. How can I assist you today?"},
		{Name: "help", Keywords: []string{"help", "support"}, Reply: "I'm here to help! What specific issue can I assist you with?"},
		{Name: "pricing", Keywords: []string{"price", "cost", "billing"}, Reply: "I'd be happy to help you with pricing information. Let me get that for you."},
		{Name: "technical", Keywords: []string{"technical", "bug", "error"}, Reply: "I understand you're experiencing a technical issue. Can you provide more details about what's happening?"},
		{Name: "thanks", Keywords: []string{"thank"}, Reply: "You're very welcome! Is there anything else I can help you with?"},
		{Name: "farewell", Keywords: []string{"bye", "goodbye"}, Reply: "Thank you for contacting us! Have a great day and feel free to reach out anytime."},
	}
}

// DefaultRuleSet returns the built-in reply table.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Rules:   DefaultRules(),
		Generic: append([]string(nil), genericReplies...),
		Image:   append([]string(nil), imageReplies...),
	}
}

// LoadRules reads a JSON reply table. Missing pools fall back to the
// built-in ones; a document without rules keeps the default rules.
func LoadRules(r io.Reader) (RuleSet, error) {
	var set RuleSet
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&set); err != nil {
		return RuleSet{}, fmt.Errorf("responder: decode rules: %w", err)
	}
	if err := set.validate(); err != nil {
		return RuleSet{}, err
	}

	defaults := DefaultRuleSet()
	if set.Rules == nil {
		set.Rules = defaults.Rules
	}
	if len(set.Generic) == 0 {
		set.Generic = defaults.Generic
	}
	if len(set.Image) == 0 {
		set.Image = defaults.Image
	}
	return set, nil
}

func (s RuleSet) validate() error {
	var errs []error
	for i, rule := range s.Rules {
		if strings.TrimSpace(rule.Reply) == "" {
			errs = append(errs, fmt.Errorf("rule %d (%s): reply is required", i, rule.Name))
		}
		if len(rule.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("rule %d (%s): at least one keyword is required", i, rule.Name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("responder: invalid rules: %w", errors.Join(errs...))
	}
	return nil
}
