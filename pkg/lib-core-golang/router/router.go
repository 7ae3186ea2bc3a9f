package router

import (
	"context"
	"net/http"

	"goji.io"
	"goji.io/pat"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
)

var logger = diag.CreateLogger()

type contextKey string

const (
	validatorRequestKey   contextKey = "validator"
	pathParamValueFuncKey contextKey = "path-param-value-func"
)

// MiddlewareFunc is a function that can be injected into a request chain
type MiddlewareFunc func(next http.Handler) http.Handler

// Router is a layer to abstract underlying http router implementation
// so we could swap it with relatively low efforts
type Router interface {
	Handle(method string, pattern string, handler http.Handler)
	Use(mw MiddlewareFunc)

	/*
		pathParam returns the bound parameter with the given name.
		Suppose we have a route pattern:

			/v1/users/:id

		and the URL Path:

			/v1/users/100

		in this case pathParam will return 100
	*/
	pathParam(r *http.Request, name string) string

	ServeHTTP(http.ResponseWriter, *http.Request)
}

type gojiRouter struct {
	mux *goji.Mux
}

func (g *gojiRouter) Handle(method string, pattern string, handler http.Handler) {
	g.mux.Handle(pat.NewWithMethods(pattern, method), handler)
}

func (g *gojiRouter) Use(mw MiddlewareFunc) {
	g.mux.Use(mw)
}

func (g *gojiRouter) pathParam(r *http.Request, name string) string {
	return pat.Param(r, name)
}

func (g *gojiRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// CreateRouter returns default router implementation.
// Validator is shared by all requests, it caches struct metadata
func CreateRouter() Router {
	router := &gojiRouter{mux: goji.NewMux()}
	validator := newStructValidator()
	pathParamValue := pathParamValueFunc(router.pathParam)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCtx := context.WithValue(r.Context(), validatorRequestKey, validator)
			nextCtx = context.WithValue(nextCtx, pathParamValueFuncKey, pathParamValue)
			next.ServeHTTP(w, r.WithContext(nextCtx))
		})
	})
	return router
}
