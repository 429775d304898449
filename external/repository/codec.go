package repository

import (
	"encoding/json"
	"fmt"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
)

func encodeSpans(spans []repository.Span) (string, error) {
	if spans == nil {
		spans = []repository.Span{}
	}
	b, err := json.Marshal(spans)
	if err != nil {
		return "", fmt.Errorf("encode spans: %w", err)
	}
	return string(b), nil
}

// decodeMessageFields fills the columns both dialects store as text.
func decodeMessageFields(msg *repository.Message, label string, spans []byte) error {
	c, err := category.ParseLabel(label)
	if err != nil {
		return fmt.Errorf("message %d: %w", msg.Seq, err)
	}
	msg.Category = c
	if len(spans) == 0 {
		return nil
	}
	if err := json.Unmarshal(spans, &msg.Spans); err != nil {
		return fmt.Errorf("decode spans of message %d: %w", msg.Seq, err)
	}
	return nil
}
