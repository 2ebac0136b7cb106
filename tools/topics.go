package tools

import (
	"context"
	"fmt"
)

const topicsQuery = `query Topics($first: Int!, $query: String) {
  topics(first: $first, query: $query) {
    edges {
      node {
        id
        name
        slug
        description
        followersCount
        postsCount
      }
    }
  }
}`

// RegisterTopicTools registers the topics domain tools.
func RegisterTopicTools(ts *Toolset) {
	ts.register("get_topics",
		"List Product Hunt topics",
		ts.runGetTopics)
	ts.register("search_topics",
		"Search Product Hunt topics by name",
		ts.runSearchTopics)
}

func (ts *Toolset) runGetTopics(ctx context.Context, input map[string]any) (any, error) {
	variables := map[string]any{
		"first": clampFirst(intArg(input, "first", 10)),
	}

	data, err := ts.client.Do(ctx, topicsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("get_topics: %w", err)
	}
	return data, nil
}

func (ts *Toolset) runSearchTopics(ctx context.Context, input map[string]any) (any, error) {
	query := stringArg(input, "query", "")
	if query == "" {
		return nil, fmt.Errorf("search_topics: query is required")
	}

	variables := map[string]any{
		"first": clampFirst(intArg(input, "first", 10)),
		"query": query,
	}

	data, err := ts.client.Do(ctx, topicsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("search_topics: %w", err)
	}
	return data, nil
}
