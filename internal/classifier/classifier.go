package classifier

import (
	"context"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
)

// OutsideLabel marks tokens that belong to no span.
const OutsideLabel = "O"

type TokenLabel struct {
	Token string
	Label string
}

type Classifier interface {
	ClassifySentence(ctx context.Context, text string) (category.Category, error)
	ClassifyTokens(ctx context.Context, text string) ([]TokenLabel, error)
}

// Highlighted drops tokens labelled OutsideLabel.
func Highlighted(tokens []TokenLabel) []TokenLabel {
	out := make([]TokenLabel, 0, len(tokens))
	for _, t := range tokens {
		if t.Label == OutsideLabel || t.Label == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
