package tracking

import (
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/tracking"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (tracking.Service, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewTeamboardClient(c.TrackingBaseURL, c.TrackingUsername, c.TrackingPassword, c.TrackingGroup), nil
	})
}
