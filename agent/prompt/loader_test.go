package prompt

import (
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	set := Load()

	prompts := map[string]string{
		"guardrail":   set.Guardrail,
		"router":      set.Router,
		"knowledge":   set.Knowledge,
		"support":     set.Support,
		"synthesizer": set.Synthesizer,
	}
	for name, p := range prompts {
		if strings.TrimSpace(p) == "" {
			t.Errorf("%s prompt is empty", name)
		}
		if p != strings.TrimSpace(p) {
			t.Errorf("%s prompt is not trimmed", name)
		}
	}
}

func TestRouterPromptNamesCategories(t *testing.T) {
	set := Load()
	for _, token := range []string{"KNOWLEDGE", "SUPPORT", "BOTH", "PORTUGUESE", "ENGLISH"} {
		if !strings.Contains(set.Router, token) {
			t.Errorf("router prompt missing %s", token)
		}
	}
}

func TestGuardrailPromptNamesVerdicts(t *testing.T) {
	set := Load()
	for _, token := range []string{"SAFE", "BLOCKED"} {
		if !strings.Contains(set.Guardrail, token) {
			t.Errorf("guardrail prompt missing %s", token)
		}
	}
}
