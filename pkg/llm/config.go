package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
)

// Role selects per-component model overrides. The guard runs on a cheaper,
// faster model than the responders by default.
type Role string

const (
	RoleGuard       Role = "guard"
	RoleRouter      Role = "router"
	RoleKnowledge   Role = "knowledge"
	RoleSupport     Role = "support"
	RoleSynthesizer Role = "synthesizer"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o-mini"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`

	GuardModel       string `envconfig:"GUARD_MODEL" split_words:"true"`
	RouterModel      string `envconfig:"ROUTER_MODEL" split_words:"true"`
	KnowledgeModel   string `envconfig:"KNOWLEDGE_MODEL" split_words:"true"`
	SupportModel     string `envconfig:"SUPPORT_MODEL" split_words:"true"`
	SynthesizerModel string `envconfig:"SYNTHESIZER_MODEL" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// ForRole returns a copy of the config with the role's model override
// applied, falling back to the default model.
func (c Config) ForRole(role Role) Config {
	override := ""
	switch role {
	case RoleGuard:
		override = c.GuardModel
	case RoleRouter:
		override = c.RouterModel
	case RoleKnowledge:
		override = c.KnowledgeModel
	case RoleSupport:
		override = c.SupportModel
	case RoleSynthesizer:
		override = c.SynthesizerModel
	}
	if v := strings.TrimSpace(override); v != "" {
		c.Model = v
	}
	return c
}
