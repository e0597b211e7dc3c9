package ctx

import (
	"github.com/valyala/fasthttp"

	"aqgateway/internal/auth"
)

const principalKey = "principal"

func SetPrincipal(ctx *fasthttp.RequestCtx, p *auth.Principal) {
	ctx.SetUserValue(principalKey, p)
}

func PrincipalFromCtx(ctx *fasthttp.RequestCtx) (*auth.Principal, bool) {
	v := ctx.UserValue(principalKey)
	if v == nil {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil
}
