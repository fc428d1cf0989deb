package sdapi

import "sort"

// SearchParams are the advanced dataset search settings, keyed by the
// server's parameter names. Anything not named by SearchParamKeys is
// rejected by ApplySearchParams.
type SearchParams map[string]interface{}

// SearchParamKeys lists every parameter the dataset search accepts, in the
// order the server documents them.
var SearchParamKeys = []string{
	"query",
	"source_search",
	"semantic_search",
	"author",
	"schema",
	"zone",
	"tags",
	"sort_target",
	"sort_direction",
	"status",
	"limit",
	"rows_min",
	"rows_max",
	"with_auto_wildcard",
	"search_schema_element",
	"filter_schema",
	"is_pk",
	"is_fk",
	"size_min",
	"size_max",
	"notebook_search",
	"notebook_type",
	"hasRun",
	"hasNotebook",
	"hasRegModel",
	"selectedExperiment",
	"selectedMetrics",
	"selectedParameters",
}

// DefaultSearchPayload is the full search body with every parameter at the
// value the web frontend sends when only a query is typed.
func DefaultSearchPayload(query string) map[string]interface{} {
	return map[string]interface{}{
		"query":                 query,
		"source_search":         false,
		"semantic_search":       false,
		"author":                "",
		"schema":                "",
		"zone":                  "",
		"tags":                  []string{},
		"sort_target":           "",
		"sort_direction":        "",
		"status":                "",
		"limit":                 "10",
		"rows_min":              "",
		"rows_max":              "",
		"with_auto_wildcard":    true,
		"search_schema_element": false,
		"filter_schema":         false,
		"is_pk":                 false,
		"is_fk":                 false,
		"size_min":              "",
		"size_max":              "",
		"notebook_search":       false,
		"notebook_type":         "",
		"hasRun":                false,
		"hasNotebook":           false,
		"hasRegModel":           false,
		"selectedExperiment":    `""`,
		"selectedMetrics":       "[]",
		"selectedParameters":    "[]",
	}
}

// ApplySearchParams overlays params onto payload.
// Keys the payload does not already carry are skipped and returned so the
// caller can warn about them, sorted.
func ApplySearchParams(payload map[string]interface{}, params SearchParams) (unknown []string) {
	for k, v := range params {
		if _, ok := payload[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		payload[k] = v
	}
	sort.Strings(unknown)
	return unknown
}
