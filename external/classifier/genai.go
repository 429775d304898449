package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/classifier"
	"google.golang.org/genai"
)

const (
	sentenceInstruction = `You classify single chat messages written by workers on a factory floor.
Answer with the label that fits the message best:
Problem: the message reports a problem or malfunction.
Ursache: the message names the cause of a problem.
Lösung: the message proposes or reports a solution.
O: anything else.`

	tokenInstruction = `Split the chat message into words and punctuation, keeping the original order.
Label every token with B-Problem, I-Problem, B-Ursache, I-Ursache, B-Lösung, I-Lösung
when it belongs to a span describing a problem, cause or solution, and O otherwise.`
)

type GenAIConfig struct {
	APIKey          string
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
	BaseURL         string
}

// GenAIClassifier prompts a Gemini model with schema-constrained JSON output.
type GenAIClassifier struct {
	client *genai.Client
	model  string
}

func NewGenAIClassifier(ctx context.Context, cfg GenAIConfig) (classifier.Classifier, error) {
	clientCfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	}
	if cfg.APIKey != "" {
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	} else {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			CredentialsJSON: []byte(cfg.CredentialsJSON),
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials: %w", err)
		}
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.ProjectID
		clientCfg.Location = cfg.Location
		clientCfg.Credentials = creds
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	slog.Info("genai classifier ready", "model", cfg.Model, "backend", clientCfg.Backend)
	return &GenAIClassifier{client: client, model: cfg.Model}, nil
}

func categoryLabels() []string {
	labels := make([]string, 0, 4)
	for _, c := range category.All() {
		labels = append(labels, c.String())
	}
	return labels
}

func (g *GenAIClassifier) ClassifySentence(ctx context.Context, text string) (category.Category, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"label": {Type: genai.TypeString, Enum: categoryLabels()},
		},
		Required: []string{"label"},
	}
	raw, err := g.generate(ctx, sentenceInstruction, text, schema)
	if err != nil {
		return 0, err
	}
	return parseSentenceJSON(raw)
}

func (g *GenAIClassifier) ClassifyTokens(ctx context.Context, text string) ([]classifier.TokenLabel, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"tokens": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"labels": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"tokens", "labels"},
	}
	raw, err := g.generate(ctx, tokenInstruction, text, schema)
	if err != nil {
		return nil, err
	}
	return parseTokensJSON(raw)
}

func (g *GenAIClassifier) generate(ctx context.Context, instruction, text string, schema *genai.Schema) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    schema,
			Temperature:       genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}
	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return "", fmt.Errorf("genai returned an empty response")
	}
	return raw, nil
}

func parseSentenceJSON(raw string) (category.Category, error) {
	var resp sentenceResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return 0, fmt.Errorf("decode sentence label: %w", err)
	}
	return category.ParseLabel(resp.Label)
}

func parseTokensJSON(raw string) ([]classifier.TokenLabel, error) {
	var resp tokensResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decode token labels: %w", err)
	}
	return zipTokens(resp.Tokens, resp.Labels)
}
