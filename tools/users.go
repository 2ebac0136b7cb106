package tools

import (
	"context"
	"fmt"
)

const userQuery = `query User($id: ID, $username: String) {
  user(id: $id, username: $username) {
    id
    name
    username
    headline
    websiteUrl
    followersCount: followers { totalCount }
    madePosts(first: 10) { edges { node { id name tagline votesCount } } }
  }
}`

// RegisterUserTools registers the users domain tools.
func RegisterUserTools(ts *Toolset) {
	ts.register("get_user",
		"Fetch a Product Hunt user profile by ID or username, including recent launches",
		ts.runGetUser)
}

func (ts *Toolset) runGetUser(ctx context.Context, input map[string]any) (any, error) {
	variables := map[string]any{}
	if id := stringArg(input, "id", ""); id != "" {
		variables["id"] = id
	}
	if username := stringArg(input, "username", ""); username != "" {
		variables["username"] = username
	}
	if len(variables) == 0 {
		return nil, fmt.Errorf("get_user: id or username is required")
	}

	data, err := ts.client.Do(ctx, userQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("get_user: %w", err)
	}
	return data, nil
}
