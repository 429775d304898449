package bot

import (
	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/classifier"
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/ledger"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/UKPLab/aacl2022-TexPrax/internal/tracking"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		l := do.MustInvoke[ledger.Ledger](i)
		gw := do.MustInvoke[chat.Gateway](i)
		clf := do.MustInvoke[classifier.Classifier](i)
		svc := do.MustInvoke[tracking.Service](i)
		return NewBot(cfg, repo, l, gw, clf, svc), nil
	})
	do.Provide(injector, func(i do.Injector) (*Loop, error) {
		cfg := do.MustInvoke[*config.Config](i)
		b := do.MustInvoke[*Bot](i)
		return NewLoop(b, cfg), nil
	})
}
