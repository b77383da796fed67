package stock

// Field is a priced sub-unit of a product. The stock attributes are a
// projection of the ledger entry and are only written by Controller.
type Field struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price"`
	StockTotal    int     `json:"stock_total"`
	InfiniteStock bool    `json:"infinite_stock"`
	InfiniteValue string  `json:"infinite_value,omitempty"`
}

// Product groups fields sold together.
type Product struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the field with id.
func (p *Product) Field(id string) (*Field, bool) {
	for i := range p.Fields {
		if p.Fields[i].ID == id {
			return &p.Fields[i], true
		}
	}
	return nil, false
}

func (p *Product) clone() Product {
	out := *p
	out.Fields = append([]Field(nil), p.Fields...)
	return out
}

func (f *Field) project(entry Entry) {
	f.InfiniteStock = entry.IsInfinite
	if entry.IsInfinite {
		f.StockTotal = 0
		f.InfiniteValue = entry.InfiniteValue
		return
	}
	f.StockTotal = entry.Total
	f.InfiniteValue = ""
}
