package classifier

import (
	"context"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/classifier"
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/samber/do/v2"
)

const genaiInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (classifier.Classifier, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.ClassifierBackend != config.ClassifierGenAI {
			return NewHTTPClassifier(c.ClassifierURL), nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), genaiInitTimeout)
		defer cancel()
		return NewGenAIClassifier(ctx, GenAIConfig{
			APIKey:          c.GenAIAPIKey,
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Location:        c.GoogleCloudLocation,
			Model:           c.GenAIModel,
		})
	})
}
