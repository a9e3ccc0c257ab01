package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", ")
	corsHeaders = "Content-Type, Authorization, Accept, Last-Event-ID"
	corsMaxAge  = strconv.Itoa(24 * 60 * 60)
)

// CORSPolicy decides which browser origins may call the API. An empty
// list or "*" allows any origin, which suits a control panel on the LAN.
type CORSPolicy struct {
	Origins []string
}

func (p CORSPolicy) any() bool {
	return len(p.Origins) == 0 || slices.Contains(p.Origins, "*")
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request
// from origin, or "" when the origin is refused.
func (p CORSPolicy) allowOrigin(origin string) string {
	if p.any() {
		return "*"
	}
	if origin != "" && slices.Contains(p.Origins, origin) {
		return origin
	}
	return ""
}

func (p CORSPolicy) apply(set func(key, value string), origin string) {
	if !p.any() {
		set("Vary", "Origin")
	}
	allowed := p.allowOrigin(origin)
	if allowed == "" {
		return
	}
	set("Access-Control-Allow-Origin", allowed)
	set("Access-Control-Allow-Methods", corsMethods)
	set("Access-Control-Allow-Headers", corsHeaders)
	set("Access-Control-Max-Age", corsMaxAge)
}

// NewCORSMiddleware sets CORS headers on every API response.
func NewCORSMiddleware(p CORSPolicy) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		p.apply(ctx.SetHeader, ctx.Header("Origin"))
		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests, which never reach Huma
// middleware because no operation is registered for OPTIONS. It owns the
// method-less root pattern so other unmatched requests still get 404; an
// "OPTIONS /" pattern would turn them into 405.
func AddCORSHandler(mux *http.ServeMux, p CORSPolicy) {
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			http.NotFound(w, r)
			return
		}
		p.apply(w.Header().Set, r.Header.Get("Origin"))
		w.WriteHeader(http.StatusNoContent)
	})
}
