package source

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func digestOf(rows ...[]*string) string {
	d := &tableDigest{}
	for _, row := range rows {
		for _, v := range row {
			if v == nil {
				d.field(nil, true)
				continue
			}
			d.field([]byte(*v), false)
		}
		d.endRow()
	}
	var buf bytes.Buffer
	d.writeTo(&buf, "orders", "olist_orders")
	return buf.String()
}

func str(s string) *string { return &s }

func TestTableDigest(t *testing.T) {
	a := []*string{str("o1"), str("100.00")}
	b := []*string{str("o2"), str("50.00")}

	assert.Equal(t, digestOf(a, b), digestOf(b, a), "row order does not matter")
	assert.NotEqual(t, digestOf(a, b), digestOf(a, []*string{str("o2"), str("51.00")}))
	assert.NotEqual(t, digestOf(a), digestOf(a, a), "duplicate rows count")
	assert.NotEqual(t,
		digestOf([]*string{str("o1"), nil}),
		digestOf([]*string{str("o1"), str("")}),
		"null differs from empty")
	assert.NotEqual(t,
		digestOf([]*string{str("ab"), str("c")}),
		digestOf([]*string{str("a"), str("bc")}),
		"cell boundaries are part of the digest")
}
