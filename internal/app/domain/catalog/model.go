// Package catalog defines purchasable items listed on a platform.
package catalog

import "time"

// Item is a catalog entry. Items persist for the lifetime of the
// platform; there is no update or delete path.
type Item struct {
	ID         string    `json:"id"`
	PlatformID string    `json:"platform_id"`
	UploaderID string    `json:"uploader_id"` // account that listed the item
	Title      string    `json:"title"`
	Price      int64     `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
}
