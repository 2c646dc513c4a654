package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zecurx/api/internal/domain"
	"github.com/zecurx/api/internal/platform/httpx"
	"github.com/zecurx/api/internal/platform/observability"
	"github.com/zecurx/api/internal/repositories"
)

const maxCheckStockRequestBody = 16 * 1024

// ShopHandlers serves customer-facing shop reads: order history and stock
// availability.
type ShopHandlers struct {
	orders    repositories.ShopOrderRepository
	inventory repositories.InventoryRepository
}

// NewShopHandlers constructs shop handlers.
func NewShopHandlers(orders repositories.ShopOrderRepository, inventory repositories.InventoryRepository) *ShopHandlers {
	return &ShopHandlers{
		orders:    orders,
		inventory: inventory,
	}
}

// Routes registers shop endpoints under the provided router.
func (h *ShopHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Post("/check-stock", h.checkStock)
}

type shopOrderItemPayload struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	ProductPrice float64 `json:"productPrice"`
	Quantity     int     `json:"quantity"`
	Subtotal     float64 `json:"subtotal"`
}

type shopOrderPayload struct {
	ID            string                 `json:"id"`
	OrderID       string                 `json:"orderId"`
	PaymentID     string                 `json:"paymentId"`
	TotalAmount   float64                `json:"totalAmount"`
	OrderStatus   string                 `json:"orderStatus"`
	PaymentStatus string                 `json:"paymentStatus"`
	CreatedAt     string                 `json:"createdAt,omitempty"`
	Items         []shopOrderItemPayload `json:"items"`
}

func (h *ShopHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shop_unavailable", "shop order lookup unavailable", http.StatusServiceUnavailable))
		return
	}

	email, err := domain.NormalizeEmail(r.URL.Query().Get("email"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_email", "email query parameter must be a valid address", http.StatusBadRequest))
		return
	}

	records, err := h.orders.ListByEmail(ctx, email)
	if err != nil {
		observability.FromContext(ctx).Error("shop order lookup failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to list orders", http.StatusInternalServerError))
		return
	}

	payload := make([]shopOrderPayload, 0, len(records))
	for _, rec := range records {
		order := shopOrderPayload{
			ID:            rec.Order.ID,
			OrderID:       rec.Order.OrderID,
			PaymentID:     rec.Order.PaymentID,
			TotalAmount:   rec.Order.TotalAmount,
			OrderStatus:   rec.Order.OrderStatus,
			PaymentStatus: rec.Order.PaymentStatus,
			Items:         make([]shopOrderItemPayload, 0, len(rec.Items)),
		}
		if !rec.Order.CreatedAt.IsZero() {
			order.CreatedAt = rec.Order.CreatedAt.UTC().Format(time.RFC3339)
		}
		for _, item := range rec.Items {
			order.Items = append(order.Items, shopOrderItemPayload{
				ProductID:    item.ProductID,
				ProductName:  item.ProductName,
				ProductPrice: item.ProductPrice,
				Quantity:     item.Quantity,
				Subtotal:     item.Subtotal,
			})
		}
		payload = append(payload, order)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  payload,
	})
}

type checkStockRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type checkStockItemPayload struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	InStock   int    `json:"inStock"`
	Available bool   `json:"available"`
}

func (h *ShopHandlers) checkStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shop_unavailable", "stock lookup unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckStockRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req checkStockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	requested := make(map[string]int, len(req.Items))
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "every item needs a productId", http.StatusBadRequest))
			return
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		if _, seen := requested[id]; !seen {
			ids = append(ids, id)
		}
		requested[id] += quantity
	}
	if len(ids) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items are required", http.StatusBadRequest))
		return
	}

	products, err := h.inventory.Availability(ctx, ids)
	if err != nil {
		observability.FromContext(ctx).Error("stock lookup failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to check stock", http.StatusInternalServerError))
		return
	}

	stock := make(map[string]int, len(products))
	for _, product := range products {
		stock[product.ID] = product.Stock
	}

	allAvailable := true
	items := make([]checkStockItemPayload, 0, len(ids))
	for _, id := range ids {
		inStock, known := stock[id]
		available := known && inStock >= requested[id]
		if !available {
			allAvailable = false
		}
		items = append(items, checkStockItemPayload{
			ProductID: id,
			Requested: requested[id],
			InStock:   inStock,
			Available: available,
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"available": allAvailable,
		"items":     items,
	})
}
