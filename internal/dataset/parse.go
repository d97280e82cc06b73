package dataset

import (
	"strconv"
	"strings"
	"time"

	"salesdash/internal/config"
	"salesdash/internal/source"
	"salesdash/pkg/contracts/domain"
)

// timeLayouts are tried in order. Values without a zone are UTC.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// parseTime returns the zero time for empty or unparseable values.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// payment_sequential and friends are sometimes exported as 1.0
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int(f)
		}
		return 0
	}
	return v
}

func parseOptionalInt(s string) *int {
	if s == "" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v := int(f)
		return &v
	}
	return nil
}

// tables holds the parsed input tables.
type tables struct {
	orders       []domain.Order
	reviews      []domain.Review
	items        []domain.OrderItem
	products     []domain.Product
	customers    []domain.Customer
	payments     []domain.Payment
	translations []domain.CategoryTranslation
}

func parseTables(raw map[string]*source.Records) (*tables, error) {
	var (
		t   tables
		err error
	)
	if t.orders, err = parseOrders(raw[config.TableOrders]); err != nil {
		return nil, err
	}
	if t.reviews, err = parseReviews(raw[config.TableOrderReviews]); err != nil {
		return nil, err
	}
	if t.items, err = parseItems(raw[config.TableOrderItems]); err != nil {
		return nil, err
	}
	if t.products, err = parseProducts(raw[config.TableProducts]); err != nil {
		return nil, err
	}
	if t.customers, err = parseCustomers(raw[config.TableCustomers]); err != nil {
		return nil, err
	}
	if t.payments, err = parsePayments(raw[config.TablePayments]); err != nil {
		return nil, err
	}
	if t.translations, err = parseTranslations(raw[config.TableCategoryTranslation]); err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOrders(r *source.Records) ([]domain.Order, error) {
	idx, err := r.Require("order_id", "customer_id", "order_status", "order_purchase_timestamp")
	if err != nil {
		return nil, err
	}
	approved := r.Col("order_approved_at")
	carrier := r.Col("order_delivered_carrier_date")
	delivered := r.Col("order_delivered_customer_date")
	estimated := r.Col("order_estimated_delivery_date")

	out := make([]domain.Order, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.Order{
			OrderID:               source.Value(row, idx[0]),
			CustomerID:            source.Value(row, idx[1]),
			Status:                domain.OrderStatus(source.Value(row, idx[2])),
			PurchaseTimestamp:     parseTime(source.Value(row, idx[3])),
			ApprovedAt:            parseTime(source.Value(row, approved)),
			DeliveredCarrierDate:  parseTime(source.Value(row, carrier)),
			DeliveredCustomerDate: parseTime(source.Value(row, delivered)),
			EstimatedDeliveryDate: parseTime(source.Value(row, estimated)),
		})
	}
	return out, nil
}

func parseReviews(r *source.Records) ([]domain.Review, error) {
	idx, err := r.Require("order_id", "review_score")
	if err != nil {
		return nil, err
	}
	id := r.Col("review_id")
	created := r.Col("review_creation_date")
	answered := r.Col("review_answer_timestamp")

	out := make([]domain.Review, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.Review{
			ReviewID:        source.Value(row, id),
			OrderID:         source.Value(row, idx[0]),
			Score:           parseOptionalInt(source.Value(row, idx[1])),
			CreationDate:    parseTime(source.Value(row, created)),
			AnswerTimestamp: parseTime(source.Value(row, answered)),
		})
	}
	return out, nil
}

func parseItems(r *source.Records) ([]domain.OrderItem, error) {
	idx, err := r.Require("order_id", "product_id")
	if err != nil {
		return nil, err
	}
	itemID := r.Col("order_item_id")
	seller := r.Col("seller_id")
	limit := r.Col("shipping_limit_date")
	price := r.Col("price")
	freight := r.Col("freight_value")

	out := make([]domain.OrderItem, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.OrderItem{
			OrderID:           source.Value(row, idx[0]),
			OrderItemID:       parseInt(source.Value(row, itemID)),
			ProductID:         source.Value(row, idx[1]),
			SellerID:          source.Value(row, seller),
			ShippingLimitDate: parseTime(source.Value(row, limit)),
			Price:             parseFloat(source.Value(row, price)),
			FreightValue:      parseFloat(source.Value(row, freight)),
		})
	}
	return out, nil
}

func parseProducts(r *source.Records) ([]domain.Product, error) {
	idx, err := r.Require("product_id", "product_category_name")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.Product{
			ProductID:    source.Value(row, idx[0]),
			CategoryName: source.Value(row, idx[1]),
		})
	}
	return out, nil
}

func parseCustomers(r *source.Records) ([]domain.Customer, error) {
	idx, err := r.Require("customer_id", "customer_unique_id", "customer_state")
	if err != nil {
		return nil, err
	}
	zip := r.Col("customer_zip_code_prefix")
	city := r.Col("customer_city")

	out := make([]domain.Customer, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.Customer{
			CustomerID:       source.Value(row, idx[0]),
			CustomerUniqueID: source.Value(row, idx[1]),
			ZipCodePrefix:    source.Value(row, zip),
			City:             source.Value(row, city),
			State:            strings.ToUpper(source.Value(row, idx[2])),
		})
	}
	return out, nil
}

func parsePayments(r *source.Records) ([]domain.Payment, error) {
	idx, err := r.Require("order_id", "payment_value")
	if err != nil {
		return nil, err
	}
	seq := r.Col("payment_sequential")
	kind := r.Col("payment_type")
	installments := r.Col("payment_installments")

	out := make([]domain.Payment, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.Payment{
			OrderID:           source.Value(row, idx[0]),
			PaymentSequential: parseInt(source.Value(row, seq)),
			PaymentType:       source.Value(row, kind),
			Installments:      parseInt(source.Value(row, installments)),
			PaymentValue:      parseFloat(source.Value(row, idx[1])),
		})
	}
	return out, nil
}

func parseTranslations(r *source.Records) ([]domain.CategoryTranslation, error) {
	idx, err := r.Require("product_category_name", "product_category_name_english")
	if err != nil {
		return nil, err
	}

	out := make([]domain.CategoryTranslation, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, domain.CategoryTranslation{
			CategoryName:        source.Value(row, idx[0]),
			CategoryNameEnglish: source.Value(row, idx[1]),
		})
	}
	return out, nil
}
