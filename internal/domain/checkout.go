package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CartItem is one product line of a cart as submitted by the storefront.
// PriceCents is in minor units and is used only to build the processor-side
// charge; the final order total comes from the processor's captured amount.
type CartItem struct {
	ProductID  string `json:"id,omitempty"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
	Quantity   int32  `json:"quantity"`
	Image      string `json:"image,omitempty"`
}

// Metadata keys on the processor payment artifact. The metadata blob is the
// only channel carrying order-reconstruction data from checkout initiation to
// webhook ingestion; the two halves of the pipeline share no memory and no
// transaction.
const (
	MetadataKeyItems  = "items"
	MetadataKeyUserID = "user_id"
)

// maxMetadataValueLen is the processor's per-value metadata limit. Carts
// whose encoded snapshot exceeds it cannot round-trip through the processor
// and are rejected at checkout time rather than lost at webhook time.
const maxMetadataValueLen = 500

// Checkout-related domain errors.
var (
	ErrCartEmpty    = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrCartTooLarge = &Error{Code: EINVALID, Message: "Cart too large to encode in payment metadata"}
)

// EncodeCartMetadata serializes the cart snapshot (and optional user id)
// into the processor metadata contract. Image URLs must already be absolute:
// the webhook that later decodes this has no request context to resolve
// relative paths against.
func EncodeCartMetadata(items []CartItem, userID *uuid.UUID) (map[string]string, error) {
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, WrapError(err, EINTERNAL, "checkout.metadata", "failed to encode cart items")
	}
	if len(encoded) > maxMetadataValueLen {
		return nil, ErrCartTooLarge
	}

	md := map[string]string{
		MetadataKeyItems: string(encoded),
	}
	if userID != nil {
		md[MetadataKeyUserID] = userID.String()
	}
	return md, nil
}

// DecodeCartMetadata reconstructs the cart snapshot from processor-echoed
// metadata. The blob is attacker-reachable (anyone with processor credentials
// could forge it), so the shape is validated defensively: missing or
// malformed items, non-positive quantities, and negative prices all fail.
func DecodeCartMetadata(md map[string]string) ([]CartItem, *uuid.UUID, error) {
	raw, ok := md[MetadataKeyItems]
	if !ok || raw == "" {
		return nil, nil, ErrMissingCartMetadata
	}

	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, nil, WrapError(err, EINVALID, "order.metadata", "cart metadata is not valid JSON")
	}
	if len(items) == 0 {
		return nil, nil, ErrMissingCartMetadata
	}
	for i, item := range items {
		if item.Name == "" {
			return nil, nil, Invalid("order.metadata", fmt.Sprintf("item %d has no name", i))
		}
		if item.Quantity <= 0 {
			return nil, nil, Invalid("order.metadata", fmt.Sprintf("item %d has non-positive quantity", i))
		}
		if item.PriceCents < 0 {
			return nil, nil, Invalid("order.metadata", fmt.Sprintf("item %d has negative price", i))
		}
	}

	var userID *uuid.UUID
	if raw, ok := md[MetadataKeyUserID]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, nil, WrapError(err, EINVALID, "order.metadata", "user_id metadata is not a UUID")
		}
		userID = &id
	}

	return items, userID, nil
}
