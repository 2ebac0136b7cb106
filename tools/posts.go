package tools

import (
	"context"
	"fmt"
)

const postsQuery = `query Posts($first: Int!, $featured: Boolean, $topic: String, $order: PostsOrder) {
  posts(first: $first, featured: $featured, topic: $topic, order: $order) {
    edges {
      node {
        id
        name
        tagline
        url
        votesCount
        commentsCount
        createdAt
        topics(first: 3) { edges { node { name } } }
      }
    }
  }
}`

const postDetailsQuery = `query PostDetails($id: ID, $slug: String) {
  post(id: $id, slug: $slug) {
    id
    name
    tagline
    description
    url
    website
    votesCount
    commentsCount
    reviewsRating
    createdAt
    makers { id name username }
    topics(first: 10) { edges { node { id name } } }
  }
}`

// RegisterPostTools registers the posts domain tools.
func RegisterPostTools(ts *Toolset) {
	ts.register("get_posts",
		"Fetch Product Hunt posts, optionally filtered by topic, featured flag, and ranking order",
		ts.runGetPosts)
	ts.register("get_post_details",
		"Fetch full details for a single Product Hunt post by ID or slug",
		ts.runGetPostDetails)
}

func (ts *Toolset) runGetPosts(ctx context.Context, input map[string]any) (any, error) {
	variables := map[string]any{
		"first": clampFirst(intArg(input, "first", 10)),
	}
	if topic := stringArg(input, "topic", ""); topic != "" {
		variables["topic"] = topic
	}
	if _, ok := input["featured"]; ok {
		variables["featured"] = boolArg(input, "featured", false)
	}
	if order := stringArg(input, "order", ""); order != "" {
		variables["order"] = order
	}

	data, err := ts.client.Do(ctx, postsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("get_posts: %w", err)
	}
	return data, nil
}

func (ts *Toolset) runGetPostDetails(ctx context.Context, input map[string]any) (any, error) {
	variables := map[string]any{}
	if id := stringArg(input, "id", ""); id != "" {
		variables["id"] = id
	}
	if slug := stringArg(input, "slug", ""); slug != "" {
		variables["slug"] = slug
	}
	if len(variables) == 0 {
		return nil, fmt.Errorf("get_post_details: id or slug is required")
	}

	data, err := ts.client.Do(ctx, postDetailsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("get_post_details: %w", err)
	}
	return data, nil
}
