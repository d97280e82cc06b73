package config

// Application constants
const (
	AppName    = "salesdash"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable (SALESDASH_SERVER_PORT, ...)
	EnvPrefix = "SALESDASH"
)

// Source kinds
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceMySQL    = "mysql"
	SourceMongo    = "mongo"
)

// Input table identifiers
const (
	TableOrders              = "orders"
	TableOrderItems          = "order_items"
	TableProducts            = "products"
	TableCustomers           = "customers"
	TableOrderReviews        = "order_reviews"
	TablePayments            = "payments"
	TableCategoryTranslation = "category_translation"
)

// DefaultTableFiles maps each input table to the file name used by the
// public Olist dataset.
var DefaultTableFiles = map[string]string{
	TableOrders:              "olist_orders_dataset.csv",
	TableOrderItems:          "olist_order_items_dataset.csv",
	TableProducts:            "olist_products_dataset.csv",
	TableCustomers:           "olist_customers_dataset.csv",
	TableOrderReviews:        "olist_order_reviews_dataset.csv",
	TablePayments:            "olist_order_payments_dataset.csv",
	TableCategoryTranslation: "product_category_name_translation.csv",
}

// RequiredTables lists the tables in join order.
var RequiredTables = []string{
	TableOrders,
	TableOrderReviews,
	TableOrderItems,
	TableProducts,
	TableCustomers,
	TablePayments,
	TableCategoryTranslation,
}
