package middleware

// OtherRoute labels every path the mux does not register, so scans of random
// URLs collapse into one metric series.
const OtherRoute = "other"

// Routes is the set of registered mux paths.
type Routes map[string]struct{}

// NewRoutes builds a route set from exact paths.
func NewRoutes(paths ...string) Routes {
	rs := make(Routes, len(paths))
	for _, p := range paths {
		rs[p] = struct{}{}
	}
	return rs
}

// Label returns path when it is registered, otherwise OtherRoute.
func (rs Routes) Label(path string) string {
	if _, ok := rs[path]; ok {
		return path
	}
	return OtherRoute
}
