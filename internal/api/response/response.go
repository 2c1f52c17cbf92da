package response

import (
	"encoding/json"
	"net/http"

	"github.com/edvin/fleet/internal/model"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// PaginatedResponse wraps a list with pagination metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}

// TransitionResponse reports a lifecycle operation outcome alongside the
// resulting resource state. Soft refusals still return 200 with ok=false.
type TransitionResponse struct {
	Transition model.Transition `json:"transition"`
	Resource   *model.Resource  `json:"resource"`
}

// WriteTransition writes a lifecycle operation result.
func WriteTransition(w http.ResponseWriter, res *model.Resource, tr model.Transition) {
	WriteJSON(w, http.StatusOK, TransitionResponse{Transition: tr, Resource: res})
}
