package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptPolicy holds the "do not ask" topic lists fed to the question
// synthesizer. Programs adds topics for a named grant program on top of the
// base list.
type PromptPolicy struct {
	ExcludedTopics []string                 `yaml:"excluded_topics"`
	Programs       map[string]ProgramPolicy `yaml:"programs"`
}

type ProgramPolicy struct {
	ExcludedTopics []string `yaml:"excluded_topics"`
}

var defaultExcludedTopics = []string{
	"project description",
	"sector or industry",
	"company background",
	"unique value proposition or competitors",
	"target customers",
	"funding status or funding history",
	"administrative or contact details (names, emails, phone numbers, addresses, ABN or registration numbers)",
	"file uploads or attachments",
	"signatures or declarations",
}

// DefaultPromptPolicy returns the built-in exclusion list.
func DefaultPromptPolicy() PromptPolicy {
	return PromptPolicy{ExcludedTopics: append([]string(nil), defaultExcludedTopics...)}
}

// LoadPromptPolicy reads a YAML policy file. An empty path yields the default
// policy; an empty excluded_topics list in the file keeps the defaults.
func LoadPromptPolicy(path string) (PromptPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPromptPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return PromptPolicy{}, fmt.Errorf("read prompt policy: %w", err)
	}

	var policy PromptPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return PromptPolicy{}, fmt.Errorf("parse prompt policy: %w", err)
	}
	if len(policy.ExcludedTopics) == 0 {
		policy.ExcludedTopics = append([]string(nil), defaultExcludedTopics...)
	}
	return policy, nil
}

// TopicsFor returns the base topics followed by any program-specific ones.
// Program names match case-insensitively.
func (p PromptPolicy) TopicsFor(program string) []string {
	topics := append([]string(nil), p.ExcludedTopics...)
	program = strings.ToLower(strings.TrimSpace(program))
	if program == "" {
		return topics
	}
	for name, extra := range p.Programs {
		if strings.ToLower(strings.TrimSpace(name)) != program {
			continue
		}
		for _, topic := range extra.ExcludedTopics {
			if !containsFold(topics, topic) {
				topics = append(topics, topic)
			}
		}
	}
	return topics
}

func containsFold(values []string, needle string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}
