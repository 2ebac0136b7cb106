package tools

import (
	"context"
	"fmt"
)

const commentsQuery = `query Comments($postId: ID!, $first: Int!, $order: CommentsOrder) {
  post(id: $postId) {
    id
    name
    comments(first: $first, order: $order) {
      edges {
        node {
          id
          body
          votesCount
          createdAt
          user { id name username }
        }
      }
    }
  }
}`

// RegisterCommentTools registers the comments domain tools.
func RegisterCommentTools(ts *Toolset) {
	ts.register("get_comments",
		"Fetch comments for a Product Hunt post",
		ts.runGetComments)
}

func (ts *Toolset) runGetComments(ctx context.Context, input map[string]any) (any, error) {
	postID := stringArg(input, "post_id", "")
	if postID == "" {
		return nil, fmt.Errorf("get_comments: post_id is required")
	}

	variables := map[string]any{
		"postId": postID,
		"first":  clampFirst(intArg(input, "first", 10)),
	}
	if order := stringArg(input, "order", ""); order != "" {
		variables["order"] = order
	}

	data, err := ts.client.Do(ctx, commentsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("get_comments: %w", err)
	}
	return data, nil
}
