package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

type mockDoc struct {
	entity.Document
	SupplierID id.ID          `db:"supplier_id" json:"supplierId"`
	TotalQty   types.Quantity `db:"total_qty" json:"totalQty"`
	Lines      []string       `db:"-" json:"lines"`
}

func TestExtractDBColumns_EmbeddedDocument(t *testing.T) {
	cols := ExtractDBColumns[mockDoc]()

	expected := []string{
		"id", "deletion_mark", "version",
		"created_at", "updated_at", "created_by", "updated_by",
		"number", "date", "comment",
		"supplier_id", "total_qty",
	}

	for _, col := range expected {
		assert.Contains(t, cols, col)
	}
	assert.NotContains(t, cols, "-")
}

func TestStructToMap_EmbeddedDocument(t *testing.T) {
	doc := mockDoc{
		Document:   entity.NewDocument(),
		SupplierID: id.New(),
		TotalQty:   types.NewQuantityFromFloat64(12.5),
		Lines:      []string{"ignored"},
	}
	doc.Number = "ORD-2026-00001"
	doc.Version = 3

	m := StructToMap(doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, "ORD-2026-00001", m["number"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, doc.SupplierID, m["supplier_id"])
	assert.Equal(t, doc.TotalQty, m["total_qty"])
	assert.NotContains(t, m, "lines")
}
