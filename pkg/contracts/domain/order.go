package domain

import (
	"time"
)

// OrderStatus is the fulfilment status of an order
type OrderStatus string

const (
	OrderStatusCreated     OrderStatus = "created"
	OrderStatusApproved    OrderStatus = "approved"
	OrderStatusInvoiced    OrderStatus = "invoiced"
	OrderStatusProcessing  OrderStatus = "processing"
	OrderStatusShipped     OrderStatus = "shipped"
	OrderStatusDelivered   OrderStatus = "delivered"
	OrderStatusUnavailable OrderStatus = "unavailable"
	OrderStatusCanceled    OrderStatus = "canceled"
)

// Order is one row of the orders table. Zero times are null.
type Order struct {
	OrderID               string
	CustomerID            string
	Status                OrderStatus
	PurchaseTimestamp     time.Time
	ApprovedAt            time.Time
	DeliveredCarrierDate  time.Time
	DeliveredCustomerDate time.Time
	EstimatedDeliveryDate time.Time
}

// OrderItem is one row of the order items table
type OrderItem struct {
	OrderID           string
	OrderItemID       int
	ProductID         string
	SellerID          string
	ShippingLimitDate time.Time
	Price             *float64
	FreightValue      *float64
}

// Product is one row of the products table
type Product struct {
	ProductID    string
	CategoryName string
}

// Customer is one row of the customers table. CustomerID identifies the
// customer record of a single order; CustomerUniqueID identifies the person.
type Customer struct {
	CustomerID       string
	CustomerUniqueID string
	ZipCodePrefix    string
	City             string
	State            string
}

// Payment is one row of the payments table
type Payment struct {
	OrderID           string
	PaymentSequential int
	PaymentType       string
	Installments      int
	PaymentValue      *float64
}

// Review is one row of the order reviews table
type Review struct {
	ReviewID        string
	OrderID         string
	Score           *int
	CreationDate    time.Time
	AnswerTimestamp time.Time
}

// CategoryTranslation maps a category code to its English name
type CategoryTranslation struct {
	CategoryName        string
	CategoryNameEnglish string
}

// TimeField indexes the time columns of a joined row
type TimeField int

const (
	PurchaseTimestamp TimeField = iota
	ApprovedAt
	DeliveredCarrierDate
	DeliveredCustomerDate
	EstimatedDeliveryDate
	ShippingLimitDate
	ReviewCreationDate
	ReviewAnswerTimestamp

	NumTimeFields
)

var timeFieldNames = [NumTimeFields]string{
	"order_purchase_timestamp",
	"order_approved_at",
	"order_delivered_carrier_date",
	"order_delivered_customer_date",
	"order_estimated_delivery_date",
	"shipping_limit_date",
	"review_creation_date",
	"review_answer_timestamp",
}

// String returns the source column name of the field
func (f TimeField) String() string {
	if f < 0 || f >= NumTimeFields {
		return "unknown"
	}
	return timeFieldNames[f]
}

// OrderRow is the joined, denormalized unit of analysis: one row per
// order × review × item × payment combination. Nullable values are nil
// pointers; a zero time in Times means the column was empty or unparseable.
type OrderRow struct {
	OrderID          string
	CustomerID       string
	CustomerUniqueID string
	Status           OrderStatus
	State            string
	City             string

	Times [NumTimeFields]time.Time

	OrderItemID  int
	ProductID    string
	SellerID     string
	Price        *float64
	FreightValue *float64

	CategoryName        string
	CategoryNameEnglish string
	// CategoryLabel is the human-readable category; empty when the product
	// has no category.
	CategoryLabel string

	ReviewID    string
	ReviewScore *int

	PaymentSequential int
	PaymentType       string
	Installments      int
	PaymentValue      *float64
}

// Purchase returns the (shifted) purchase timestamp
func (r *OrderRow) Purchase() time.Time {
	return r.Times[PurchaseTimestamp]
}

// Revenue returns the payment value of the row, zero when absent
func (r *OrderRow) Revenue() float64 {
	if r.PaymentValue == nil {
		return 0
	}
	return *r.PaymentValue
}
