// Package flash contains the domain model for page notifications: the
// (category, message) items shown as toasts and their wire encoding.
package flash

import (
	"encoding/json"
	"errors"
	"fmt"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Known categories. Any string is accepted; these are the ones pages style.
const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryWarning = "warning"
	CategoryDanger  = "danger"
)

// TemplateErrorPrefix is prepended to template render errors before they are shown.
const TemplateErrorPrefix = "Template Render Error: "

// Kind identifies which dispatch path a batch belongs to.
// Each kind is dispatched at most once per page session.
type Kind string

const (
	KindFlash         Kind = "flash"
	KindTemplateError Kind = "template_error"
)

// Item is a single notification.
type Item struct {
	Category string
	Message  string
}

// ResolvedCategory returns the category, defaulting to "info" when empty.
func (i Item) ResolvedCategory() string {
	if i.Category == "" {
		return CategoryInfo
	}
	return i.Category
}

// AlertText formats the item for the blocking fallback dialog.
func (i Item) AlertText() string {
	return fmt.Sprintf("[%s] %s", i.ResolvedCategory(), i.Message)
}

// MarshalJSON encodes the item as a ["category","message"] pair.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{i.Category, i.Message})
}

// Batch is an ordered sequence of items. Delivery order is slice order.
type Batch []Item

// TemplateError builds the singleton batch shown for a template render failure.
func TemplateError(message string) Batch {
	return Batch{{Category: CategoryDanger, Message: TemplateErrorPrefix + message}}
}

// Request is what producers publish to have a flash shown on the recipient's
// next page load.
type Request struct {
	RecipientID string `json:"recipient_id"`
	Category    string `json:"category"`
	Message     string `json:"message"`
}

// ErrNoRecipient is returned for an empty recipient. urn.Parse accepts ""
// as the zero URN, which would file the flash under a shared key.
var ErrNoRecipient = errors.New("missing recipient")

// ParseRecipient parses a user URN and rejects the zero value.
func ParseRecipient(s string) (urn.URN, error) {
	u, err := urn.Parse(s)
	if err != nil {
		return urn.URN{}, err
	}
	if u.IsZero() {
		return urn.URN{}, ErrNoRecipient
	}
	return u, nil
}

// Item returns the request's notification.
func (r Request) Item() Item {
	return Item{Category: r.Category, Message: r.Message}
}
