package domain

import "time"

type ShippingMethod string

const (
	ShippingParcel   ShippingMethod = "PARCEL"
	ShippingDelivery ShippingMethod = "DELIVERY"
)

type Seller struct {
	Username  string `json:"username" db:"username"`
	Name      string `json:"name" db:"name"`
	StoreName string `json:"store_name,omitempty" db:"store_name"`
}

// Product prices and fees are in the smallest currency unit.
type Product struct {
	ID             int            `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Info           string         `json:"info" db:"info"`
	Image          string         `json:"image" db:"image"`
	Price          int            `json:"price" db:"price"`
	ShippingMethod ShippingMethod `json:"shipping_method" db:"shipping_method"`
	ShippingFee    int            `json:"shipping_fee" db:"shipping_fee"`
	Stock          int            `json:"stock" db:"stock"`
	Seller         Seller         `json:"seller" db:"seller"`
	CreatedAt      string         `json:"created_at" db:"created_at"`
	UpdatedAt      string         `json:"updated_at" db:"updated_at"`
}

// CartEntry holds a snapshot of the product taken when it was added, not a
// live reference.
type CartEntry struct {
	ID        int     `json:"id"`
	UserID    string  `json:"-"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
	AddedAt   string  `json:"added_at"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

type PaymentMethod string

const (
	PayCard     PaymentMethod = "card"
	PayDeposit  PaymentMethod = "deposit"
	PayPhone    PaymentMethod = "phone"
	PayNaverPay PaymentMethod = "naverpay"
	PayKakaoPay PaymentMethod = "kakaopay"
)

var PaymentMethods = []PaymentMethod{PayCard, PayDeposit, PayPhone, PayNaverPay, PayKakaoPay}

func (m PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods {
		if m == v {
			return true
		}
	}
	return false
}

type OrderStatus string

const (
	StatusPaymentPending  OrderStatus = "payment_pending"
	StatusPaymentComplete OrderStatus = "payment_complete"
	StatusPreparing       OrderStatus = "preparing"
	StatusShipping        OrderStatus = "shipping"
	StatusDelivered       OrderStatus = "delivered"
	StatusCancelled       OrderStatus = "cancelled"
)

type OrderType string

const (
	DirectOrder OrderType = "direct_order"
	CartOrder   OrderType = "cart_order"
)

type OrderItem struct {
	Product            Product `json:"product"`
	OrderedQuantity    int     `json:"ordered_quantity"`
	OrderedUnitPrice   int     `json:"ordered_unit_price"`
	OrderedShippingFee int     `json:"ordered_shipping_fee"`
	ItemTotalPrice     int     `json:"item_total_price"`
}

// Order is immutable once created. UserID never leaves the server.
type Order struct {
	ID                  int           `json:"id"`
	UserID              string        `json:"-"`
	OrderNumber         string        `json:"order_number"`
	PaymentMethod       PaymentMethod `json:"payment_method"`
	Status              OrderStatus   `json:"order_status"`
	Type                OrderType     `json:"order_type"`
	TotalPrice          int           `json:"total_price"`
	Items               []OrderItem   `json:"order_items"`
	Receiver            string        `json:"receiver"`
	ReceiverPhoneNumber string        `json:"receiver_phone_number"`
	Address             string        `json:"address,omitempty"`
	DeliveryMessage     string        `json:"delivery_message,omitempty"`
	CreatedAt           string        `json:"created_at"`
	UpdatedAt           string        `json:"updated_at"`
}

type UserType string

const (
	UserBuyer  UserType = "BUYER"
	UserSeller UserType = "SELLER"
)

type User struct {
	Username           string   `json:"username" db:"username"`
	Hash               string   `json:"-" db:"password_hash"`
	Name               string   `json:"name" db:"name"`
	PhoneNumber        string   `json:"phone_number" db:"phone_number"`
	UserType           UserType `json:"user_type" db:"user_type"`
	RegistrationNumber string   `json:"company_registration_number,omitempty" db:"company_registration_number"`
	StoreName          string   `json:"store_name,omitempty" db:"store_name"`
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp renders t the way every created_at/updated_at field is stored.
func Timestamp(t time.Time) string { return t.UTC().Format(timeLayout) }
