package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
)

// NotesMap is the raw, string-keyed metadata bag attached to a processor
// order at checkout. It is decoded exactly once, at the boundary; downstream
// components only ever see the typed union below.
type NotesMap map[string]any

var (
	// ErrInvalidEmail signals the notes carried an email that fails RFC parsing.
	ErrInvalidEmail = errors.New("notes: invalid email")
	// ErrInvalidItems signals the goods item list could not be decoded.
	ErrInvalidItems = errors.New("notes: invalid item list")
)

const goodsOrderType = "shop"

// Contact identifies the purchaser across both fulfillment shapes.
type Contact struct {
	Email    string
	Name     string
	Phone    string
	Whatsapp string
	College  string
}

// Shipping carries the delivery address for a goods order.
type Shipping struct {
	Address string
	City    string
	Pincode string
}

// OrderLine is one purchased product parsed from the serialized item list.
type OrderLine struct {
	ProductID string
	Name      string
	Price     float64
	Quantity  int
}

// Notes is the tagged union of decoded order metadata. Exactly two shapes
// exist: GoodsNotes for physical orders and ServiceNotes for course or plan
// purchases.
type Notes interface {
	Buyer() Contact
}

// GoodsNotes describes a physical-goods order with at least one line item.
type GoodsNotes struct {
	Contact  Contact
	Shipping Shipping
	Items    []OrderLine
}

// Buyer implements Notes.
func (n GoodsNotes) Buyer() Contact { return n.Contact }

// ServiceNotes describes a course or plan purchase.
type ServiceNotes struct {
	Contact  Contact
	PlanID   string
	ItemName string
}

// Buyer implements Notes.
func (n ServiceNotes) Buyer() Contact { return n.Contact }

// NormalizeEmail trims, validates, and lower-cases an address. The normalized
// form is the canonical customer key.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return strings.ToLower(trimmed), nil
}

// RouteNotes classifies raw notes into the typed union. A nil Notes with a
// nil error means the payment carries no fulfillment context (no email) and
// the pipeline should record nothing beyond verification. A present but
// malformed email is an error: the payment is still verified, fulfillment is
// not attempted.
func RouteNotes(raw NotesMap) (Notes, error) {
	email := stringField(raw, "email")
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}

	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	contact := Contact{
		Email:    normalized,
		Name:     stringField(raw, "name"),
		Phone:    firstStringField(raw, "mobile", "phone"),
		Whatsapp: stringField(raw, "whatsapp"),
		College:  stringField(raw, "college"),
	}

	if strings.EqualFold(stringField(raw, "orderType"), goodsOrderType) {
		items, err := decodeItems(raw["items"])
		if err == nil && len(items) > 0 {
			return GoodsNotes{
				Contact: contact,
				Shipping: Shipping{
					Address: stringField(raw, "address"),
					City:    stringField(raw, "city"),
					Pincode: stringField(raw, "pincode"),
				},
				Items: items,
			}, nil
		}
		if err != nil {
			return nil, err
		}
	}

	return ServiceNotes{
		Contact:  contact,
		PlanID:   stringField(raw, "planId"),
		ItemName: stringField(raw, "itemName"),
	}, nil
}

type rawItem struct {
	ProductID string          `json:"productId"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     json.RawMessage `json:"price"`
	Quantity  json.RawMessage `json:"quantity"`
}

func decodeItems(value any) ([]OrderLine, error) {
	if value == nil {
		return nil, nil
	}

	var encoded []byte
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		encoded = []byte(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidItems, err)
		}
		encoded = data
	}

	var items []rawItem
	if err := json.Unmarshal(encoded, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItems, err)
	}

	lines := make([]OrderLine, 0, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" {
			id = strings.TrimSpace(item.ID)
		}
		if id == "" {
			return nil, fmt.Errorf("%w: line %d has no product id", ErrInvalidItems, i)
		}

		price, ok := decodeNumber(item.Price)
		if !ok || price <= 0 {
			return nil, fmt.Errorf("%w: line %d has no resolvable price", ErrInvalidItems, i)
		}

		quantity := 1
		if qty, ok := decodeNumber(item.Quantity); ok {
			if qty != math.Trunc(qty) {
				return nil, fmt.Errorf("%w: line %d has fractional quantity %v", ErrInvalidItems, i, qty)
			}
			quantity = int(qty)
		}
		if quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d has non-positive quantity", ErrInvalidItems, i)
		}

		lines = append(lines, OrderLine{
			ProductID: id,
			Name:      strings.TrimSpace(item.Name),
			Price:     price,
			Quantity:  quantity,
		})
	}
	return lines, nil
}

// decodeNumber accepts JSON numbers and numeric strings, which checkout
// clients have historically sent interchangeably.
func decodeNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func stringField(raw NotesMap, key string) string {
	if raw == nil {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func firstStringField(raw NotesMap, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(stringField(raw, key)); value != "" {
			return value
		}
	}
	return ""
}
