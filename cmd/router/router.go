package router

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nginx-proxxy/hello-server/cmd/handlers"
)

// UnmatchedLabel names requests that no route in the table accepted.
const UnmatchedLabel = "unmatched"

// Route maps an HTTP method and path to a handler
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// NewRoute creates a route entry for the routing table
func NewRoute(method string, path string, handler http.HandlerFunc) *Route {
	return &Route{
		Method:  method,
		Path:    path,
		Handler: handler,
	}
}

// DefaultRoutes returns the responder's routing table
func DefaultRoutes() []*Route {
	return []*Route{
		NewRoute(http.MethodGet, "/", handlers.RootHandler),
		NewRoute(http.MethodGet, "/health", handlers.HealthHandler),
	}
}

// New builds a router from the given table. GET entries also answer HEAD,
// every path answers OPTIONS with its Allow list, unknown paths get 404 and
// other methods on a known path get 405 with Allow set.
func New(routes []*Route) *mux.Router {
	r := mux.NewRouter()

	allowed := make(map[string]map[string]bool)
	var paths []string
	for _, route := range routes {
		methods := []string{route.Method}
		if route.Method == http.MethodGet {
			methods = append(methods, http.MethodHead)
		}
		r.HandleFunc(route.Path, route.Handler).Methods(methods...)

		if allowed[route.Path] == nil {
			allowed[route.Path] = map[string]bool{http.MethodOptions: true}
			paths = append(paths, route.Path)
		}
		for _, m := range methods {
			allowed[route.Path][m] = true
		}
	}

	allow := make(map[string]string, len(allowed))
	for _, path := range paths {
		allow[path] = allowHeader(allowed[path])
		r.HandleFunc(path, optionsHandler(allow[path])).Methods(http.MethodOptions)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if v, ok := allow[req.URL.Path]; ok {
			w.Header().Set("Allow", v)
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	return r
}

func allowHeader(methods map[string]bool) string {
	list := make([]string, 0, len(methods))
	for m := range methods {
		list = append(list, m)
	}
	sort.Strings(list)
	return strings.Join(list, ", ")
}

func optionsHandler(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusOK)
	}
}

// RouteLabel returns the path template of the route matching req, or
// UnmatchedLabel. It keeps metric label cardinality bounded by the table size.
func RouteLabel(r *mux.Router, req *http.Request) string {
	var match mux.RouteMatch
	if r.Match(req, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return UnmatchedLabel
}
