package ai

import (
	"testing"

	"trade-ledger/internal/core"

	"github.com/shopspring/decimal"
)

func testCatalog() Catalog {
	return Catalog{
		Customers: []core.Customer{{ID: 1, Code: "C001", Name: "Toko Budi"}, {ID: 2, Code: "C002", Name: "Warung Sari"}},
		Products:  []core.Product{{ID: 1, Code: "BRS", Name: "Beras", UnitPrice: decimal.NewFromInt(12000), Unit: "kg"}},
	}
}

func TestParseDraft(t *testing.T) {
	content := `{"customer_code":" c002 ","product_code":"brs","quantity":"25","payment_amount":"","sale_date":"","notes":"","confidence":0.9,"reasoning":"named customer and product"}`
	d, err := ParseDraft(content, testCatalog())
	if err != nil {
		t.Fatalf("ParseDraft failed: %v", err)
	}
	if d.CustomerID != 2 || d.ProductID != 1 || !d.UnitPrice.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("resolution: %+v", d)
	}

	in := d.SaleInput("2026-03-05")
	if in.SaleDate != "2026-03-05" || !in.Quantity.Equal(decimal.NewFromInt(25)) || !in.PaymentAmount.IsZero() || !in.AutoDebt {
		t.Errorf("sale input: %+v", in)
	}
}

func TestParseDraft_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown customer", `{"customer_code":"C999","product_code":"BRS","quantity":"1","payment_amount":"0","confidence":0.5}`, "customer_code"},
		{"unknown product", `{"customer_code":"C001","product_code":"XYZ","quantity":"1","payment_amount":"0","confidence":0.5}`, "product_code"},
		{"zero quantity", `{"customer_code":"C001","product_code":"BRS","quantity":"0","payment_amount":"0","confidence":0.5}`, "quantity"},
		{"negative payment", `{"customer_code":"C001","product_code":"BRS","quantity":"2","payment_amount":"-5","confidence":0.5}`, "payment_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDraft(tt.content, testCatalog())
			ve, ok := err.(*core.ValidationError)
			if !ok || ve.Field != tt.field {
				t.Fatalf("want ValidationError on %s, got %v", tt.field, err)
			}
		})
	}

	if _, err := ParseDraft("not json", testCatalog()); !core.IsExternal(err) {
		t.Errorf("malformed completion: want ExternalServiceError, got %v", err)
	}
}

func TestDraftSchema(t *testing.T) {
	schema, err := draftSchema()
	if err != nil {
		t.Fatalf("draftSchema failed: %v", err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", schema)
	}
	for _, k := range []string{"customer_code", "product_code", "quantity", "confidence"} {
		if _, ok := props[k]; !ok {
			t.Errorf("missing property %s", k)
		}
	}
	if _, ok := props["CustomerID"]; ok {
		t.Error("resolved fields must not reach the model schema")
	}
	if schema["additionalProperties"] != false {
		t.Error("schema must forbid additional properties")
	}
}
