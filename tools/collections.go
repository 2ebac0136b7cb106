package tools

import (
	"context"
	"fmt"
)

const collectionsQuery = `query Collections($first: Int!, $featured: Boolean) {
  collections(first: $first, featured: $featured) {
    edges {
      node {
        id
        name
        description
        url
        followersCount
        createdAt
      }
    }
  }
}`

const collectionDetailsQuery = `query CollectionDetails($id: ID!) {
  collection(id: $id) {
    id
    name
    description
    url
    followersCount
    createdAt
    user { id name username }
    posts(first: 20) { edges { node { id name tagline votesCount } } }
  }
}`

// RegisterCollectionTools registers the collections domain tools.
func RegisterCollectionTools(ts *Toolset) {
	ts.register("get_collections",
		"Fetch Product Hunt collections, optionally only featured ones",
		ts.runGetCollections)
	ts.register("get_collection_details",
		"Fetch a single collection with its posts",
		ts.runGetCollectionDetails)
}

func (ts *Toolset) runGetCollections(ctx context.Context, input map[string]any) (any, error) {
	variables := map[string]any{
		"first": clampFirst(intArg(input, "first", 10)),
	}
	if _, ok := input["featured"]; ok {
		variables["featured"] = boolArg(input, "featured", false)
	}

	data, err := ts.client.Do(ctx, collectionsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("get_collections: %w", err)
	}
	return data, nil
}

func (ts *Toolset) runGetCollectionDetails(ctx context.Context, input map[string]any) (any, error) {
	id := stringArg(input, "id", "")
	if id == "" {
		return nil, fmt.Errorf("get_collection_details: id is required")
	}

	data, err := ts.client.Do(ctx, collectionDetailsQuery, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get_collection_details: %w", err)
	}
	return data, nil
}
