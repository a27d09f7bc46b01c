package http

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"gitlab.com/ucmsv2/ctxprop/internal/application/hello"
	hellohttp "gitlab.com/ucmsv2/ctxprop/internal/ports/http/hello"
	"gitlab.com/ucmsv2/ctxprop/internal/ports/http/middlewares"
	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/httpx"
)

type Port struct {
	middleware *middlewares.Middleware
	hello      *hellohttp.HTTP
}

type Args struct {
	Store      *ctxs.Store
	HelloApp   *hello.App
	Greeter    hellohttp.Greeter
	Errhandler *httpx.ErrorHandler
}

func NewPort(args Args) *Port {
	return &Port{
		middleware: middlewares.NewMiddleware(middlewares.Args{
			Store:      args.Store,
			Errhandler: args.Errhandler,
		}),
		hello: hellohttp.NewHTTP(hellohttp.Args{
			App:        args.HelloApp,
			Greeter:    args.Greeter,
			Errhandler: args.Errhandler,
		}),
	}
}

// Route mounts the handlers on r. The language is activated before the
// timezone so a rejected X-Timezone header is reported in the negotiated
// language.
func (p *Port) Route(r chi.Router) chi.Router {
	if r == nil {
		r = chi.NewRouter()
	}

	r.Use(
		chimiddleware.RequestID,
		chimiddleware.Recoverer,
		middlewares.OTel,
		p.middleware.Logger,
		p.middleware.Language,
		p.middleware.Timezone,
	)
	p.hello.Route(r)

	return r
}
