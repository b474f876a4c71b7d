package x402http

import "strings"

type segment struct {
	literal string
	param   string // non-empty when this segment is a ":name" path parameter
}

type compiledRoute struct {
	method   string
	segments []segment
	name     string // last literal segment, used as the logical-URL name
	config   RouteConfig
}

func compileRoute(pattern string, cfg RouteConfig) compiledRoute {
	method, path, _ := strings.Cut(pattern, " ")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	segments := make([]segment, 0, len(parts))
	name := ""
	for _, part := range parts {
		if strings.HasPrefix(part, ":") {
			segments = append(segments, segment{param: strings.TrimPrefix(part, ":")})
			continue
		}
		segments = append(segments, segment{literal: part})
		name = part
	}

	return compiledRoute{method: strings.ToUpper(method), segments: segments, name: name, config: cfg}
}

// matchRoute finds the first route matching method and path, extracting
// any ":name" path parameters.
func matchRoute(routes []compiledRoute, method, path string) (compiledRoute, map[string]string, bool) {
	requestParts := strings.Split(strings.Trim(path, "/"), "/")

	for _, route := range routes {
		if route.method != method || len(route.segments) != len(requestParts) {
			continue
		}

		params := make(map[string]string)
		matched := true
		for i, seg := range route.segments {
			if seg.param != "" {
				params[seg.param] = requestParts[i]
				continue
			}
			if seg.literal != requestParts[i] {
				matched = false
				break
			}
		}
		if matched {
			return route, params, true
		}
	}

	return compiledRoute{}, nil, false
}
