package pipeline

import "strings"

// routeRule binds one route to the keyword set that selects it. Rules
// are evaluated in order; the first match wins, so a question carrying
// both schema and help keywords classifies as a schema request.
type routeRule struct {
	route    Route
	keywords []string
	// exact keywords match only the whole trimmed question, so a data
	// question ending in "?" is not misrouted to help.
	exact []string
}

var routeRules = []routeRule{
	{
		route:    RouteSchemaRequest,
		keywords: []string{"list tables", "show tables", "schema", "table structure", "describe table"},
	},
	{
		route:    RouteHelpRequest,
		keywords: []string{"help", "aide", "assistant", "how to use"},
		// exact-only keywords would misroute data questions as substrings:
		// "top 5 customers by usage" is a data query, a bare "usage" is not.
		exact: []string{"?", "usage"},
	},
}

// Classify pattern-matches the question into a route. It is pure local
// computation: no external call, always returns a value.
func Classify(question string) Route {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, rule := range routeRules {
		for _, exact := range rule.exact {
			if q == exact {
				return rule.route
			}
		}
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.route
			}
		}
	}
	return RouteDataQuery
}
