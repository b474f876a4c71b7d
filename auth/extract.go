package auth

import (
	"strings"

	"github.com/nevermined-io/payments-sub002/reqctx"
)

// Extra represents the heterogeneous "extra" object the MCP SDK hands
// tool/resource/prompt handlers. Its header-bearing shape varies by
// transport, hence the ordered extractor list below (§9 design note).
type Extra map[string]interface{}

// extractorFunc attempts one well-defined field of Extra and reports
// whether it found a usable header map.
type extractorFunc func(Extra) (map[string]interface{}, bool)

// headerPaths is the ordered list of known Extra shapes carrying headers,
// per §4.4.1. The first shape carrying a non-empty Authorization header
// wins; a shape without one is skipped.
var headerPaths = []extractorFunc{
	nestedHeaders("requestInfo"),
	nestedHeaders("request"),
	topLevelHeaders,
	nestedHeaders("connection"),
	socketHandshakeHeaders,
}

func nestedHeaders(field string) extractorFunc {
	return func(e Extra) (map[string]interface{}, bool) {
		container, ok := e[field].(map[string]interface{})
		if !ok {
			return nil, false
		}
		headers, ok := container["headers"].(map[string]interface{})
		return headers, ok
	}
}

func topLevelHeaders(e Extra) (map[string]interface{}, bool) {
	headers, ok := e["headers"].(map[string]interface{})
	return headers, ok
}

func socketHandshakeHeaders(e Extra) (map[string]interface{}, bool) {
	socket, ok := e["socket"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	handshake, ok := socket["handshake"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	headers, ok := handshake["headers"].(map[string]interface{})
	return headers, ok
}

// headerValue looks up name case-insensitively in a generic headers map
// whose values may be a string or a []string (as some transports encode
// repeated headers).
func headerValue(headers map[string]interface{}, name string) (string, bool) {
	lowerName := strings.ToLower(name)
	for k, v := range headers {
		if strings.ToLower(k) != lowerName {
			continue
		}
		switch val := v.(type) {
		case string:
			return val, true
		case []string:
			if len(val) > 0 {
				return val[0], true
			}
		case []interface{}:
			if len(val) > 0 {
				if s, ok := val[0].(string); ok {
					return s, true
				}
			}
		}
	}
	return "", false
}

// stripBearer removes a "Bearer " prefix, case-insensitively, if present.
func stripBearer(value string) string {
	const prefix = "bearer "
	if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return value
}

// ExtractBearer implements §4.4.1: try each known Extra shape in order,
// then fall back to the request-context store (C7); the first non-empty
// Authorization header wins. The returned value has any "Bearer " prefix
// already stripped.
func ExtractBearer(extra Extra, rc *reqctx.RequestContext) (string, bool) {
	for _, extractor := range headerPaths {
		headers, ok := extractor(extra)
		if !ok {
			continue
		}
		if v, found := headerValue(headers, "Authorization"); found && v != "" {
			return stripBearer(v), true
		}
	}

	if rc != nil {
		if v, found := rc.Header("Authorization"); found && v != "" {
			return stripBearer(v), true
		}
	}

	return "", false
}

// HTTPURLFromContext builds "<proto>://<host><path>" from the
// request-context store, defaulting proto to "http" (§4.4.2). It returns
// ("", false) when no request context is installed or it carries no host.
func HTTPURLFromContext(rc *reqctx.RequestContext) (string, bool) {
	if rc == nil {
		return "", false
	}
	host, ok := rc.Header("Host")
	if !ok || host == "" {
		return "", false
	}
	proto := "http"
	if v, ok := rc.Header("X-Forwarded-Proto"); ok && v != "" {
		proto = v
	}
	path := rc.URL
	return proto + "://" + host + path, true
}
