package httpcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/async"
)

const (
	sourceGraphQL       = "HTTP/Request/GraphQL"
	defaultGraphQLDepth = 10
)

// GraphQLParams configures AcceptsDeepGraphQLQueries. Depth is the nesting
// level the server is expected to reject.
type GraphQLParams struct {
	Target `mapstructure:",squash"`
	Depth  int `mapstructure:"depth"`
}

type graphQLReply struct {
	Data   json.RawMessage   `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

type depthProbe struct {
	depth    int
	accepted bool
	status   int
}

// AcceptsDeepGraphQLQueries posts introspection queries of increasing
// nesting and checks whether the deepest one is still answered.
var AcceptsDeepGraphQLQueries = assert.API(assert.Meta{
	Name:        "proto.graphql.accepts_deep_queries",
	Description: "OPEN when the GraphQL endpoint answers queries nested to the given depth.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p GraphQLParams) (check.Outcome, error) {
	url, err := p.normalizedURL()
	if err != nil {
		return check.Outcome{}, err
	}
	depth := p.Depth
	if depth <= 0 {
		depth = defaultGraphQLDepth
	}
	sess, err := p.session(false)
	if err != nil {
		return check.Outcome{}, err
	}

	probes, err := async.RunFunc(ctx, func(ctx context.Context, d int) (depthProbe, error) {
		var reply graphQLReply
		resp, err := sess.PostJSON(ctx, url, map[string]string{"query": nestedQuery(d)}, &reply)
		if err != nil && resp == nil {
			return depthProbe{}, err
		}
		accepted := err == nil && resp.StatusCode == http.StatusOK &&
			len(reply.Errors) == 0 && len(reply.Data) > 0 && string(reply.Data) != "null"
		return depthProbe{depth: d, accepted: accepted, status: resp.StatusCode}, nil
	}, probeDepths(depth), 0)
	if err != nil {
		return check.Outcome{}, err
	}

	specific := make([]string, 0, len(probes))
	for _, pr := range probes {
		verdict := "rejected"
		if pr.accepted {
			verdict = "accepted"
		}
		specific = append(specific, fmt.Sprintf("depth %d %s (status %d)", pr.depth, verdict, pr.status))
	}
	unit := check.NewUnit(url, specific, check.WithSource(sourceGraphQL))

	if deepest := probes[len(probes)-1]; deepest.accepted {
		return check.Open(fmt.Sprintf("GraphQL endpoint accepts queries nested %d levels deep", deepest.depth), unit), nil
	}
	return check.Closed(fmt.Sprintf("GraphQL endpoint rejects queries nested %d levels deep", depth), unit), nil
}, assert.NetworkErrors...))

// probeDepths returns the shallow baseline, the midpoint and the target depth.
func probeDepths(depth int) []int {
	depths := []int{1}
	if mid := depth / 2; mid > 1 && mid < depth {
		depths = append(depths, mid)
	}
	if depth > 1 {
		depths = append(depths, depth)
	}
	return depths
}

// nestedQuery builds an introspection query with depth levels of
// fields { type { ... } } nesting.
func nestedQuery(depth int) string {
	var b strings.Builder
	b.WriteString("query { __schema { types { name ")
	for i := 0; i < depth; i++ {
		b.WriteString("fields { name type { name ")
	}
	for i := 0; i < depth; i++ {
		b.WriteString("} } ")
	}
	b.WriteString("} } }")
	return b.String()
}
