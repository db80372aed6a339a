// Package navigation describes the console shell: breadcrumb trails per route and sidebar sizing.
package navigation

import "strings"

// Sidebar widths for the pinned (expanded) and collapsed states.
const (
	SidebarExpandedWidth  = "240px"
	SidebarCollapsedWidth = "70px"
)

// SidebarWidth returns the layout width for the sidebar state.
func SidebarWidth(pinned bool) string {
	if pinned {
		return SidebarExpandedWidth
	}
	return SidebarCollapsedWidth
}

// Crumb is one breadcrumb. The last crumb of a trail has no path.
type Crumb struct {
	Label string `json:"label"`
	Path  string `json:"path,omitempty"`
}

type route struct {
	pattern string
	crumbs  []Crumb
}

var (
	dashboard = Crumb{Label: "Dashboard", Path: "/admin-dashboard"}
	domains   = Crumb{Label: "Domains", Path: "/domain/all"}
	clients   = Crumb{Label: "Clients", Path: "/client/all"}
)

var routes = []route{
	{"/domain/all", []Crumb{dashboard, {Label: "Domains"}}},
	{"/domain/new", []Crumb{dashboard, domains, {Label: "New Domain"}}},
	{"/domain/update/:id", []Crumb{dashboard, domains, {Label: "Edit Domain"}}},
	{"/domain/history", []Crumb{dashboard, domains, {Label: "Domain History"}}},
	{"/domain/history/:domainId", []Crumb{dashboard, domains, {Label: "Domain History"}}},
	{"/client/all", []Crumb{dashboard, {Label: "Clients"}}},
	{"/client/new", []Crumb{dashboard, clients, {Label: "New Client"}}},
	{"/client/update/:id", []Crumb{dashboard, clients, {Label: "Edit Client"}}},
}

// Match finds the first route matching path exactly and returns its
// ":name" parameters. Trailing slashes are ignored.
func Match(path string) (pattern string, params map[string]string, ok bool) {
	segs := split(path)
	for _, r := range routes {
		if p, ok := match(split(r.pattern), segs); ok {
			return r.pattern, p, true
		}
	}
	return "", nil, false
}

// Trail returns the breadcrumbs for path. Labels found in relabel are replaced,
// which lets callers show record names in place of generic titles.
func Trail(path string, relabel map[string]string) ([]Crumb, bool) {
	pattern, _, ok := Match(path)
	if !ok {
		return nil, false
	}
	for _, r := range routes {
		if r.pattern != pattern {
			continue
		}
		out := make([]Crumb, len(r.crumbs))
		for i, c := range r.crumbs {
			if l, ok := relabel[c.Label]; ok && l != "" {
				c.Label = l
			}
			out[i] = c
		}
		return out, true
	}
	return nil, false
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func match(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range pattern {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if segs[i] == "" {
				return nil, false
			}
			params[name] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}
