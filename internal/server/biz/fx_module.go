package biz

import (
	"go.uber.org/fx"
)

var Module = fx.Module("biz",
	fx.Provide(NewAuthService),
	fx.Provide(NewAccountService),
	fx.Provide(NewRoleService),
	fx.Provide(NewOrganizationService),
	fx.Provide(NewImpersonationService),
)
