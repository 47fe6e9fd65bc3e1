package runner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/crucible-dev/crucible/pkg/models"
)

// Client wraps the Anthropic SDK client, resolving model classes to
// concrete models and tracking token usage.
type Client struct {
	inner   anthropic.Client
	classes map[models.ModelClass]anthropic.Model
	bedrock bool
	tracker *TokenTracker
}

// ClientConfig configures a new Client.
type ClientConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the Bedrock region (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is an optional AWS profile name.
	AWSProfile string
	// ModelClasses maps capability tiers to concrete model names. Unset
	// classes fall back to defaults.
	ModelClasses map[models.ModelClass]string
}

// defaultModelClasses is used for any class the configuration leaves unset.
var defaultModelClasses = map[models.ModelClass]anthropic.Model{
	models.ModelClassLow:    anthropic.ModelClaude3_5Haiku20241022,
	models.ModelClassMedium: anthropic.ModelClaudeSonnet4_20250514,
	models.ModelClassHigh:   anthropic.ModelClaudeOpus4_1_20250805,
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	classes := make(map[models.ModelClass]anthropic.Model, len(defaultModelClasses))
	for class, model := range defaultModelClasses {
		classes[class] = model
	}
	for class, name := range cfg.ModelClasses {
		if name != "" {
			classes[class] = anthropic.Model(name)
		}
	}
	if cfg.UseAWSBedrock {
		for class, model := range classes {
			classes[class] = translateModelForBedrock(model)
		}
	}

	return &Client{
		inner:   anthropic.NewClient(opts...),
		classes: classes,
		bedrock: cfg.UseAWSBedrock,
		tracker: NewTokenTracker(),
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profile format: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	if strings.HasPrefix(string(model), "us.anthropic") {
		return model
	}
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// ResolveModel maps a model class to its configured concrete model.
// An invalid class resolves to the medium tier.
func (c *Client) ResolveModel(class models.ModelClass) anthropic.Model {
	if model, ok := c.classes[class]; ok {
		return model
	}
	return c.classes[models.ModelClassMedium]
}

// sdk returns the underlying Anthropic client for internal API access.
func (c *Client) sdk() *anthropic.Client {
	return &c.inner
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}
