package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"text/tabwriter"
)

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
}

// CollectRoutes lists the routes of a router sorted by path, then method.
func CollectRoutes(router Router) []RouteInfo {
	var routes []RouteInfo
	_ = router.Walk(func(method, path string, handler http.Handler) error {
		routes = append(routes, RouteInfo{
			Method:  method,
			Path:    path,
			Handler: handlerName(handler),
		})
		return nil
	})

	slices.SortFunc(routes, func(a, b RouteInfo) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return routes
}

// handlerName resolves the function name behind a handler, for example
// "handler.(*PermissionHandler).ApplyPreset".
func handlerName(handler http.Handler) string {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", handler)
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return fmt.Sprintf("%T", handler)
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// PrintRoutes writes the routes as "table" (default), "json" or "simple".
func PrintRoutes(w io.Writer, routes []RouteInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	case "simple":
		for _, r := range routes {
			if _, err := fmt.Fprintf(w, "%-7s %s\n", r.Method, r.Path); err != nil {
				return err
			}
		}
		return nil
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "METHOD\tPATH\tHANDLER")
		for _, r := range routes {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Method, r.Path, r.Handler)
		}
		fmt.Fprintf(tw, "\n%d routes\n", len(routes))
		return tw.Flush()
	}
}
