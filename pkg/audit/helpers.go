package audit

import (
	"strings"
)

// extractResource returns the API area a path belongs to: "assets",
// "lifecycle", "sync", or "" for anything else.
func extractResource(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	// Expected format: api/v1/{resource}/...
	if len(parts) < 3 || parts[0] != "api" {
		return ""
	}
	switch parts[2] {
	case "assets", "lifecycle", "sync", "reports":
		return parts[2]
	}
	return ""
}

// extractAssetTag pulls the asset tag out of paths like
// /api/v1/assets/{tag}. Lifecycle operations carry the tag in the request
// body and are recorded without one.
func extractAssetTag(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 4 || parts[2] != "assets" {
		return ""
	}
	tag := parts[3]
	if tag == "search" {
		return ""
	}
	return tag
}

// extractAction returns a human-readable action name from the HTTP method
// and path.
func extractAction(method, path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch extractResource(path) {
	case "lifecycle":
		// /api/v1/lifecycle/{op}: the operation name is the action.
		if len(parts) >= 4 {
			return parts[3]
		}
	case "sync":
		// /api/v1/sync/{direction}
		if len(parts) >= 4 {
			return "sync-" + parts[3]
		}
		return "sync"
	}

	switch method {
	case "POST":
		return "create"
	case "PUT":
		return "update"
	case "PATCH":
		return "patch"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// shouldAudit returns true if the request should be recorded. Mutating
// methods are recorded; browsing (GET) and health checks are not.
func shouldAudit(method, path string) bool {
	if path == "/healthz" {
		return false
	}
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}
