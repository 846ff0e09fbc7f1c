package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
	RoleAdmin    = "admin"
)

type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Role            string     `json:"role"`
	PhoneNumber     *string    `json:"phone_number"`
	GoogleID        *string    `json:"google_id"`
	ProfilePicture  *string    `json:"profile_picture"`
	IsActive        bool       `json:"is_active"`
	IsStaff         bool       `json:"is_staff"`
	VerifiedEmail   bool       `json:"verified_email"`
	FarmName        *string    `json:"farm_name"`
	FarmAddress     *string    `json:"farm_address"`
	FarmDescription *string    `json:"farm_description"`
	OTPCode         *string    `json:"-"`
	OTPGeneratedAt  *time.Time `json:"-"`
	DateJoined      time.Time  `json:"date_joined"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int        `json:"version"`
}

// CanManage reports whether u may modify a resource owned by ownerID.
func (u *User) CanManage(ownerID int64) bool {
	return u != nil && (u.ID == ownerID || u.IsStaff || u.Role == RoleAdmin)
}

// ProfileUpdate carries the user-editable profile fields. A nil field is left
// untouched.
type ProfileUpdate struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Role            *string `json:"role"`
	PhoneNumber     *string `json:"phone_number"`
	ProfilePicture  *string `json:"profile_picture"`
	FarmName        *string `json:"farm_name"`
	FarmAddress     *string `json:"farm_address"`
	FarmDescription *string `json:"farm_description"`
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	UnitTypeUnit = "unit"
	UnitTypeKg   = "kg"
)

type Product struct {
	ID                int64           `json:"id"`
	ProducerID        int64           `json:"producer_id"`
	CategoryID        *int64          `json:"category_id"`
	Name              string          `json:"name"`
	ShortDescription  string          `json:"short_description"`
	LongDescription   string          `json:"long_description"`
	UnitType          string          `json:"unit_type"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	LocationVillage   string          `json:"location_village"`
	LocationCommune   string          `json:"location_commune"`
	ImageURL          string          `json:"image_url,omitempty"`
	IsPublished       bool            `json:"is_published"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

type Cart struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user"`
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type CartItem struct {
	ID          int64           `json:"id"`
	CartID      int64           `json:"-"`
	ProductID   int64           `json:"product"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int64           `json:"user"`
	ProducerID      int64           `json:"producer"`
	Status          string          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
	Items           []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"-"`
	ProductID   *int64          `json:"product"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

var orderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusCompleted},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RevenueStatuses are the statuses counted towards vendor revenue.
var RevenueStatuses = []string{OrderStatusPaid, OrderStatusCompleted}

type VendorStats struct {
	Totals      VendorTotals     `json:"totals"`
	ByStatus    map[string]int64 `json:"by_status"`
	TopProducts []TopProduct     `json:"top_products"`
	Period      StatsPeriod      `json:"period"`
}

type VendorTotals struct {
	Orders    int64           `json:"orders"`
	Revenue   decimal.Decimal `json:"revenue"`
	ItemsSold decimal.Decimal `json:"items_sold"`
}

type TopProduct struct {
	ProductName  string          `json:"product_name"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// StatsPeriod echoes the raw bounds the caller supplied.
type StatsPeriod struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}
