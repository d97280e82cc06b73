package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"salesdash/internal/config"
)

// Table is an in-memory input table: a header and string rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// OrderFixture describes one order and its dependent rows. Every fixture
// produces Items item rows (at least one when ProductID is set), one review
// and one payment row per entry of Payments. Empty strings become empty
// cells.
type OrderFixture struct {
	OrderID          string
	CustomerID       string
	CustomerUniqueID string
	State            string
	City             string
	Status           string

	Purchase          string
	Approved          string
	DeliveredCarrier  string
	DeliveredCustomer string
	Estimated         string

	ProductID string
	Category  string
	Price     string
	Items     int

	ReviewScore string
	Payments    []string
}

// OlistFixtures builds input tables in the layout of the public Olist dataset.
type OlistFixtures struct {
	TestDataDir  string
	Orders       []OrderFixture
	Translations map[string]string
}

// NewOlistFixtures creates a fixtures manager writing into testDataDir
func NewOlistFixtures(testDataDir string) *OlistFixtures {
	return &OlistFixtures{
		TestDataDir: testDataDir,
		Translations: map[string]string{
			"beleza_saude":    "health_beauty",
			"cama_mesa_banho": "bed_bath_table",
			"esporte_lazer":   "sports_leisure",
		},
	}
}

// Add appends orders to the fixture set
func (f *OlistFixtures) Add(orders ...OrderFixture) *OlistFixtures {
	f.Orders = append(f.Orders, orders...)
	return f
}

// ThreeOrderScenario returns two SP orders (January and February 2024) and
// one RJ order (February 2024) with payments of 100, 50 and 30.
func ThreeOrderScenario() []OrderFixture {
	return []OrderFixture{
		{
			OrderID: "o1", CustomerID: "c1", CustomerUniqueID: "u1", State: "SP", City: "sao paulo",
			Status: "delivered", Purchase: "2024-01-05 10:00:00", Approved: "2024-01-05 11:00:00",
			DeliveredCustomer: "2024-01-12 09:00:00", ProductID: "p1", Category: "beleza_saude",
			Price: "90.00", ReviewScore: "5", Payments: []string{"100.00"},
		},
		{
			OrderID: "o2", CustomerID: "c2", CustomerUniqueID: "u2", State: "SP", City: "campinas",
			Status: "delivered", Purchase: "2024-02-10 15:30:00", Approved: "2024-02-10 16:00:00",
			DeliveredCustomer: "2024-02-18 12:00:00", ProductID: "p2", Category: "cama_mesa_banho",
			Price: "45.00", ReviewScore: "4", Payments: []string{"50.00"},
		},
		{
			OrderID: "o3", CustomerID: "c3", CustomerUniqueID: "u3", State: "RJ", City: "rio de janeiro",
			Status: "shipped", Purchase: "2024-02-20 08:15:00", Approved: "2024-02-20 09:00:00",
			ProductID: "p3", Category: "esporte_lazer",
			Price: "25.00", ReviewScore: "3", Payments: []string{"30.00"},
		},
	}
}

// Tables renders the fixtures as the seven input tables
func (f *OlistFixtures) Tables() map[string]Table {
	orders := Table{Header: []string{
		"order_id", "customer_id", "order_status", "order_purchase_timestamp", "order_approved_at",
		"order_delivered_carrier_date", "order_delivered_customer_date", "order_estimated_delivery_date",
	}}
	items := Table{Header: []string{
		"order_id", "order_item_id", "product_id", "seller_id", "shipping_limit_date", "price", "freight_value",
	}}
	products := Table{Header: []string{
		"product_id", "product_category_name", "product_name_lenght", "product_weight_g",
	}}
	customers := Table{Header: []string{
		"customer_id", "customer_unique_id", "customer_zip_code_prefix", "customer_city", "customer_state",
	}}
	reviews := Table{Header: []string{
		"review_id", "order_id", "review_score", "review_comment_title", "review_comment_message",
		"review_creation_date", "review_answer_timestamp",
	}}
	payments := Table{Header: []string{
		"order_id", "payment_sequential", "payment_type", "payment_installments", "payment_value",
	}}
	translations := Table{Header: []string{"product_category_name", "product_category_name_english"}}

	seenProducts := make(map[string]bool)
	seenCustomers := make(map[string]bool)

	for i, o := range f.Orders {
		orders.Rows = append(orders.Rows, []string{
			o.OrderID, o.CustomerID, o.Status, o.Purchase, o.Approved,
			o.DeliveredCarrier, o.DeliveredCustomer, o.Estimated,
		})

		if o.ProductID != "" {
			for n := 1; n <= max(o.Items, 1); n++ {
				items.Rows = append(items.Rows, []string{
					o.OrderID, fmt.Sprint(n), o.ProductID, fmt.Sprintf("s%d", i+1), o.Purchase, o.Price, "10.00",
				})
			}
			if !seenProducts[o.ProductID] {
				seenProducts[o.ProductID] = true
				products.Rows = append(products.Rows, []string{o.ProductID, o.Category, "40", "500"})
			}
		}

		if o.CustomerID != "" && !seenCustomers[o.CustomerID] {
			seenCustomers[o.CustomerID] = true
			customers.Rows = append(customers.Rows, []string{
				o.CustomerID, o.CustomerUniqueID, fmt.Sprintf("%05d", 1000+i), o.City, o.State,
			})
		}

		if o.ReviewScore != "" {
			reviews.Rows = append(reviews.Rows, []string{
				"r" + o.OrderID, o.OrderID, o.ReviewScore, "", "", o.DeliveredCustomer, o.DeliveredCustomer,
			})
		}

		for seq, value := range o.Payments {
			payments.Rows = append(payments.Rows, []string{
				o.OrderID, fmt.Sprint(seq + 1), "credit_card", "1", value,
			})
		}
	}

	codes := make([]string, 0, len(f.Translations))
	for code := range f.Translations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		translations.Rows = append(translations.Rows, []string{code, f.Translations[code]})
	}

	return map[string]Table{
		config.TableOrders:              orders,
		config.TableOrderItems:          items,
		config.TableProducts:            products,
		config.TableCustomers:           customers,
		config.TableOrderReviews:        reviews,
		config.TablePayments:            payments,
		config.TableCategoryTranslation: translations,
	}
}

// WriteCSV writes every table into TestDataDir under its Olist file name
func (f *OlistFixtures) WriteCSV() error {
	if err := os.MkdirAll(f.TestDataDir, 0755); err != nil {
		return fmt.Errorf("failed to create test data directory: %w", err)
	}

	for table, data := range f.Tables() {
		path := filepath.Join(f.TestDataDir, config.DefaultTableFiles[table])
		if err := writeCSVFile(path, data); err != nil {
			return fmt.Errorf("failed to write %s: %w", table, err)
		}
	}
	return nil
}

// RemoveTable deletes the file of one table
func (f *OlistFixtures) RemoveTable(table string) error {
	return os.Remove(filepath.Join(f.TestDataDir, config.DefaultTableFiles[table]))
}

// CleanupTestData removes all test data files
func (f *OlistFixtures) CleanupTestData() error {
	return os.RemoveAll(f.TestDataDir)
}

// WriteOlistCSV writes the given orders into a fresh temporary directory and
// returns it.
func WriteOlistCSV(t *testing.T, orders ...OrderFixture) string {
	t.Helper()

	fixtures := NewOlistFixtures(t.TempDir()).Add(orders...)
	if err := fixtures.WriteCSV(); err != nil {
		t.Fatalf("failed to write fixtures: %v", err)
	}
	return fixtures.TestDataDir
}

func writeCSVFile(path string, data Table) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(data.Header); err != nil {
		return err
	}
	if err := w.WriteAll(data.Rows); err != nil {
		return err
	}
	return file.Close()
}
