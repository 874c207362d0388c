package core

import "time"

// User 是发起推荐请求的用户，引擎只关心 ID。
type User struct {
	ID string
}

// Product 是目录中的商品。Strategy 通过 CatalogStore 读取，不做修改。
type Product struct {
	ID          string
	Name        string
	Slug        string
	Price       float64
	Visible     bool
	Published   bool
	Featured    bool
	BrandID     string
	CategoryIDs []string

	// 全局热度信号
	ViewCount   int64
	SalesCount  int64
	ReviewCount int64
	AvgRating   float64

	CreatedAt time.Time
}

// InteractionType 是用户与商品的交互类型。
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionClick    InteractionType = "click"
	InteractionWishlist InteractionType = "wishlist"
	InteractionCart     InteractionType = "cart"
	InteractionReview   InteractionType = "review"
	InteractionPurchase InteractionType = "purchase"
)

// Interaction 是一次用户交互记录。
type Interaction struct {
	UserID    string
	ProductID string
	Type      InteractionType
	Rating    float64
	CreatedAt time.Time
}
