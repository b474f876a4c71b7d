// Package logicalurl builds the deterministic capability identifier used
// to route entitlement checks to the facilitator (C3). The result is an
// identifier, not a location: nothing ever dereferences it over the
// network.
package logicalurl

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/nevermined-io/payments-sub002"
)

// Build returns "mcp://<serverName>/<kind>s/<name>?<sorted-args>" for
// kind ∈ {tool, prompt}, and "mcp://<serverName>/resources/<name>?..."
// for resources. The query string is a stable, sorted, URL-encoded
// serialization of args — reordering keys in args must never change the
// result.
func Build(kind x402.Kind, serverName, name string, args map[string]string) string {
	segment := pluralSegment(kind)
	u := fmt.Sprintf("mcp://%s/%s/%s", serverName, segment, name)
	if qs := encodeSorted(args); qs != "" {
		u += "?" + qs
	}
	return u
}

// BuildMeta returns "mcp://<serverName>/meta/<method>" for meta-level
// operations (those not addressed at a specific tool/resource/prompt).
func BuildMeta(serverName, method string) string {
	return fmt.Sprintf("mcp://%s/meta/%s", serverName, method)
}

func pluralSegment(kind x402.Kind) string {
	switch kind {
	case x402.KindResource:
		return "resources"
	case x402.KindPrompt:
		return "prompts"
	default:
		return "tools"
	}
}

// encodeSorted serializes args as a URL query string with keys sorted
// lexicographically, so the same argument set always produces the same
// logical URL regardless of map iteration order.
func encodeSorted(args map[string]string) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Set(k, args[k])
	}
	// url.Values.Encode already sorts by key, but we built it from an
	// explicitly sorted key list so the behavior is documented here
	// rather than relied upon implicitly.
	return values.Encode()
}
