package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zecurx/api/internal/platform/httpx"
	"github.com/zecurx/api/internal/platform/observability"
	"github.com/zecurx/api/internal/repositories"
)

const (
	defaultIssueListLimit = 100
	maxIssueListLimit     = 500
)

// OpsHandlers exposes operational reads for the on-call rotation. The router
// mounts them behind the ops token middleware.
type OpsHandlers struct {
	issues repositories.OrderIssueRepository
}

// NewOpsHandlers constructs ops handlers.
func NewOpsHandlers(issues repositories.OrderIssueRepository) *OpsHandlers {
	return &OpsHandlers{issues: issues}
}

// Routes registers internal endpoints under the provided router.
func (h *OpsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/order-issues", h.listOrderIssues)
}

type orderIssuePayload struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	ProductID string `json:"productId"`
	IssueType string `json:"issueType"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (h *OpsHandlers) listOrderIssues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.issues == nil {
		httpx.WriteError(ctx, w, httpx.NewError("ops_unavailable", "order issue lookup unavailable", http.StatusServiceUnavailable))
		return
	}

	limit := defaultIssueListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}
	if limit > maxIssueListLimit {
		limit = maxIssueListLimit
	}

	issues, err := h.issues.List(ctx, limit)
	if err != nil {
		observability.FromContext(ctx).Error("order issue lookup failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to list order issues", http.StatusInternalServerError))
		return
	}

	payload := make([]orderIssuePayload, 0, len(issues))
	for _, issue := range issues {
		entry := orderIssuePayload{
			ID:        issue.ID,
			OrderID:   issue.OrderID,
			PaymentID: issue.PaymentID,
			ProductID: issue.ProductID,
			IssueType: issue.IssueType,
			Detail:    issue.Detail,
		}
		if !issue.CreatedAt.IsZero() {
			entry.CreatedAt = issue.CreatedAt.UTC().Format(time.RFC3339)
		}
		payload = append(payload, entry)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"issues":  payload,
	})
}
