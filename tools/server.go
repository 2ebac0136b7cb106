package tools

import (
	"context"
	"time"
)

const viewerQuery = `query Viewer {
  viewer {
    user { id name username }
  }
}`

// RegisterServerTools registers gateway meta tools.
func RegisterServerTools(ts *Toolset) {
	ts.register("check_server_status",
		"Report gateway status, registered tool count, and upstream API reachability",
		ts.runCheckServerStatus)
}

// runCheckServerStatus never fails: upstream problems are reported in the
// payload so workflow clients can branch on them.
func (ts *Toolset) runCheckServerStatus(ctx context.Context, _ map[string]any) (any, error) {
	result := map[string]any{
		"status":           "operational",
		"tools_registered": ts.reg.Len(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := ts.client.Do(probeCtx, viewerQuery, nil); err != nil {
		result["upstream"] = "unreachable"
		result["upstream_error"] = err.Error()
	} else {
		result["upstream"] = "reachable"
	}
	return result, nil
}
