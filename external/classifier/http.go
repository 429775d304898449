package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/classifier"
)

const httpRequestTimeout = 30 * time.Second

// HTTPClassifier talks to the inference server hosting the sentence and
// token models.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClassifier(baseURL string) classifier.Classifier {
	return &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: httpRequestTimeout},
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type sentenceResponse struct {
	Label string `json:"label"`
}

type tokensResponse struct {
	Tokens []string `json:"tokens"`
	Labels []string `json:"labels"`
}

func (c *HTTPClassifier) ClassifySentence(ctx context.Context, text string) (category.Category, error) {
	var resp sentenceResponse
	if err := c.postJSON(ctx, "/sentence", textRequest{Text: text}, &resp); err != nil {
		return 0, err
	}
	return category.ParseLabel(resp.Label)
}

func (c *HTTPClassifier) ClassifyTokens(ctx context.Context, text string) ([]classifier.TokenLabel, error) {
	var resp tokensResponse
	if err := c.postJSON(ctx, "/tokens", textRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return zipTokens(resp.Tokens, resp.Labels)
}

func zipTokens(tokens, labels []string) ([]classifier.TokenLabel, error) {
	if len(tokens) != len(labels) {
		return nil, fmt.Errorf("classifier returned %d tokens but %d labels", len(tokens), len(labels))
	}
	out := make([]classifier.TokenLabel, len(tokens))
	for i := range tokens {
		out[i] = classifier.TokenLabel{Token: tokens[i], Label: labels[i]}
	}
	return out, nil
}

func (c *HTTPClassifier) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("classifier %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode classifier %s response: %w", path, err)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
