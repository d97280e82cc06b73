package dataset

import (
	"salesdash/pkg/contracts/domain"
)

// keyIndex maps a join key to the positions of its rows, in table order.
// Rows with an empty key are not indexed and so never match.
type keyIndex map[string][]int

func indexBy(n int, key func(i int) string) keyIndex {
	idx := make(keyIndex, n)
	for i := 0; i < n; i++ {
		k := key(i)
		if k == "" {
			continue
		}
		idx[k] = append(idx[k], i)
	}
	return idx
}

// noMatch stands in for the single all-null row a left join emits when the
// right side has no match.
var noMatch = []int{-1}

func (idx keyIndex) lookup(k string) []int {
	if k == "" {
		return noMatch
	}
	if m, ok := idx[k]; ok {
		return m
	}
	return noMatch
}

// join performs the left joins orders ⟕ reviews ⟕ items ⟕ products ⟕
// customers ⟕ payments ⟕ translations. For every left row the matching
// right rows are emitted in right-table order, so the result is identical
// to running the joins one after another on an ordered accumulator.
func join(t *tables) []domain.OrderRow {
	reviews := indexBy(len(t.reviews), func(i int) string { return t.reviews[i].OrderID })
	items := indexBy(len(t.items), func(i int) string { return t.items[i].OrderID })
	products := indexBy(len(t.products), func(i int) string { return t.products[i].ProductID })
	customers := indexBy(len(t.customers), func(i int) string { return t.customers[i].CustomerID })
	payments := indexBy(len(t.payments), func(i int) string { return t.payments[i].OrderID })
	translations := indexBy(len(t.translations), func(i int) string { return t.translations[i].CategoryName })

	rows := make([]domain.OrderRow, 0, len(t.orders))
	for _, o := range t.orders {
		base := domain.OrderRow{
			OrderID:    o.OrderID,
			CustomerID: o.CustomerID,
			Status:     o.Status,
		}
		base.Times[domain.PurchaseTimestamp] = o.PurchaseTimestamp
		base.Times[domain.ApprovedAt] = o.ApprovedAt
		base.Times[domain.DeliveredCarrierDate] = o.DeliveredCarrierDate
		base.Times[domain.DeliveredCustomerDate] = o.DeliveredCustomerDate
		base.Times[domain.EstimatedDeliveryDate] = o.EstimatedDeliveryDate

		for _, ri := range reviews.lookup(o.OrderID) {
			withReview := base
			if ri >= 0 {
				r := t.reviews[ri]
				withReview.ReviewID = r.ReviewID
				withReview.ReviewScore = r.Score
				withReview.Times[domain.ReviewCreationDate] = r.CreationDate
				withReview.Times[domain.ReviewAnswerTimestamp] = r.AnswerTimestamp
			}

			for _, ii := range items.lookup(o.OrderID) {
				withItem := withReview
				productID := ""
				if ii >= 0 {
					it := t.items[ii]
					productID = it.ProductID
					withItem.OrderItemID = it.OrderItemID
					withItem.ProductID = it.ProductID
					withItem.SellerID = it.SellerID
					withItem.Price = it.Price
					withItem.FreightValue = it.FreightValue
					withItem.Times[domain.ShippingLimitDate] = it.ShippingLimitDate
				}

				for _, pi := range products.lookup(productID) {
					withProduct := withItem
					if pi >= 0 {
						withProduct.CategoryName = t.products[pi].CategoryName
					}

					for _, ci := range customers.lookup(o.CustomerID) {
						withCustomer := withProduct
						if ci >= 0 {
							c := t.customers[ci]
							withCustomer.CustomerUniqueID = c.CustomerUniqueID
							withCustomer.City = c.City
							withCustomer.State = c.State
						}

						for _, yi := range payments.lookup(o.OrderID) {
							withPayment := withCustomer
							if yi >= 0 {
								p := t.payments[yi]
								withPayment.PaymentSequential = p.PaymentSequential
								withPayment.PaymentType = p.PaymentType
								withPayment.Installments = p.Installments
								withPayment.PaymentValue = p.PaymentValue
							}

							for _, ti := range translations.lookup(withPayment.CategoryName) {
								row := withPayment
								if ti >= 0 {
									row.CategoryNameEnglish = t.translations[ti].CategoryNameEnglish
								}
								rows = append(rows, row)
							}
						}
					}
				}
			}
		}
	}
	return rows
}
