package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"primaryKey"               json:"id"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	JTI       string    `gorm:"unique;not null"     json:"jti"`
	UserID    uuid.UUID `gorm:"index;not null"      json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"            json:"expires_at"`
	Revoked   bool      `gorm:"default:false"       json:"revoked"`
}

type Product struct {
	ID          uuid.UUID       `gorm:"primaryKey"              json:"id"`
	FarmerID    uuid.UUID       `gorm:"index"                   json:"farmer_id"`
	Name        string          `gorm:"not null"                json:"name"`
	Description string          `                               json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric;not null"   json:"price"`
	Quantity    uint            `                               json:"quantity"`
	SoldOut     bool            `gorm:"default:false"           json:"sold_out"`
	ImageURL    string          `                               json:"image_url"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Cart is the per-user working set of not-yet-purchased items. Created
// lazily on the first add; emptied, never deleted, when an order is placed.
type Cart struct {
	ID     uuid.UUID  `gorm:"primaryKey"             json:"id"`
	UserID uuid.UUID  `gorm:"uniqueIndex;not null"   json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID"      json:"items"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem holds at most one line per (cart, product) pair; adding an
// existing product merges into the line instead of duplicating it.
type CartItem struct {
	ID        uuid.UUID `gorm:"primaryKey"                                      json:"id"`
	CartID    uuid.UUID `gorm:"uniqueIndex:idx_cart_product;not null"           json:"cart_id"`
	ProductID uuid.UUID `gorm:"uniqueIndex:idx_cart_product;not null"           json:"product_id"`
	Quantity  uint      `gorm:"default:1;check:quantity>0"                      json:"quantity"`
	Product   *Product  `gorm:"foreignKey:ProductID"                            json:"product,omitempty"`
}

func (ci *CartItem) BeforeCreate(tx *gorm.DB) error {
	if ci.ID == uuid.Nil {
		ci.ID = uuid.New()
	}
	return nil
}

const (
	OrderStatusPending   = "pending"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is immutable after creation except for Status. Total is computed
// once at checkout and never recomputed from live product data.
type Order struct {
	ID        uuid.UUID       `gorm:"primaryKey"              json:"id"`
	UserID    uuid.UUID       `gorm:"index;not null"          json:"user_id"`
	Status    string          `gorm:"not null"                json:"status"`
	Total     decimal.Decimal `gorm:"type:numeric;not null"   json:"total"`
	CreatedAt time.Time       `gorm:"not null"                json:"created_at"`
	Items     []OrderLineItem `gorm:"foreignKey:OrderID"      json:"items"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderLineItem snapshots name and unit price at order-creation time so
// historical orders stay stable when the product is edited or deleted.
type OrderLineItem struct {
	ID        uuid.UUID       `gorm:"primaryKey"              json:"id"`
	OrderID   uuid.UUID       `gorm:"index;not null"          json:"order_id"`
	ProductID uuid.UUID       `gorm:"not null"                json:"product_id"`
	Name      string          `gorm:"not null"                json:"name"`
	Quantity  uint            `gorm:"check:quantity>0"        json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric;not null"   json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:numeric;not null"   json:"line_total"`
}

func (li *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderLineItem{},
	)
}

// IsTerminalStatus reports whether no further transitions are allowed.
func IsTerminalStatus(s string) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func IsKnownStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}
