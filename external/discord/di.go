package discord

import (
	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (chat.Gateway, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(c.DiscordToken), nil
	})
}
