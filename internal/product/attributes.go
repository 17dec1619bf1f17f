package product

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/eoprod/eoprod/pkg/types"
)

// TimeLayout is the serialized form of timestamp attributes.
const TimeLayout = "2006-01-02T15:04:05"

// Shape tells whether dimensions and processing log are kept once for the
// whole product or once per sub-product.
type Shape int

const (
	Single Shape = iota
	PerSubProduct
)

func (s Shape) String() string {
	if s == PerSubProduct {
		return "per_sub_product"
	}
	return "single"
}

// ProcessingEntry is one step of the processing log.
type ProcessingEntry struct {
	Name       string            `json:"processing_name"`
	Parameters map[string]string `json:"processing_parameters"`
}

// NewEntry builds a log entry from alternating key/value strings.
func NewEntry(name string, keyValues ...string) ProcessingEntry {
	params := make(map[string]string, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		params[keyValues[i]] = keyValues[i+1]
	}
	return ProcessingEntry{Name: name, Parameters: params}
}

// Clone returns a deep copy of e.
func (e ProcessingEntry) Clone() ProcessingEntry {
	out := ProcessingEntry{Name: e.Name, Parameters: maps.Clone(e.Parameters)}
	if out.Parameters == nil {
		out.Parameters = map[string]string{}
	}
	return out
}

// Scope holds the dimensions and processing log of one sub-product, or of
// the whole product when the shape is Single.
type Scope struct {
	SubProduct string
	Columns    int
	Rows       int
	Processing []ProcessingEntry
}

func (s Scope) clone() Scope {
	out := s
	out.Processing = make([]ProcessingEntry, len(s.Processing))
	for i, e := range s.Processing {
		out.Processing[i] = e.Clone()
	}
	return out
}

// Reserved attribute keys.
const (
	KeyProductName       = "product_name"
	KeyProductString     = "product_string"
	KeyProductType       = "product_type"
	KeyStartTime         = "start_time"
	KeyEndTime           = "end_time"
	KeyProductColumns    = "product_columns"
	KeyProductRows       = "product_rows"
	KeyProductProcessing = "product_processing"
	KeyCoordinates       = "coordinates"
)

var reservedKeys = map[string]bool{
	KeyProductName:   true,
	KeyProductString: true,
	KeyProductType:   true,
	KeyStartTime:     true,
	KeyEndTime:       true,
}

// Attributes is the product attribute set. Keys the system does not own
// live in Extra and are carried through derivations untouched.
type Attributes struct {
	ProductName   string
	ProductString string
	ProductType   string
	StartTime     time.Time
	EndTime       time.Time
	Shape         Shape
	Scopes        []Scope
	Extra         map[string]interface{}
}

// NewAttributes builds the attributes of freshly opened sub-products from
// the metadata of the first one.
func NewAttributes(handles []types.NativeProduct, productType string) *Attributes {
	meta := handles[0].Metadata()
	a := &Attributes{
		ProductName:   meta.ProductName,
		ProductString: meta.ProductString,
		ProductType:   productType,
		StartTime:     meta.StartTime,
		EndTime:       meta.EndTime,
		Extra:         cloneExtra(meta.Extra),
	}
	if len(handles) > 1 {
		a.Shape = PerSubProduct
	}
	for _, h := range handles {
		m := h.Metadata()
		a.Scopes = append(a.Scopes, Scope{SubProduct: h.Name(), Columns: m.Columns, Rows: m.Rows})
	}
	return a
}

// Clone returns a deep copy of a.
func (a *Attributes) Clone() *Attributes {
	out := *a
	out.Scopes = make([]Scope, len(a.Scopes))
	for i, s := range a.Scopes {
		out.Scopes[i] = s.clone()
	}
	out.Extra = cloneExtra(a.Extra)
	return &out
}

// Scope returns the scope of a sub-product. With a Single shape the only
// scope is returned for any name.
func (a *Attributes) Scope(subProduct string) (*Scope, bool) {
	if a.Shape == Single && len(a.Scopes) == 1 {
		return &a.Scopes[0], true
	}
	for i := range a.Scopes {
		if a.Scopes[i].SubProduct == subProduct {
			return &a.Scopes[i], true
		}
	}
	return nil, false
}

// AppendProcessing appends entry to the log of every scope.
func (a *Attributes) AppendProcessing(entry ProcessingEntry) {
	for i := range a.Scopes {
		a.Scopes[i].Processing = append(a.Scopes[i].Processing, entry.Clone())
	}
}

// ProcessingLog returns a copy of the log of one scope.
func (a *Attributes) ProcessingLog(subProduct string) []ProcessingEntry {
	s, ok := a.Scope(subProduct)
	if !ok {
		return nil
	}
	return s.clone().Processing
}

// Flatten renders the attributes as a key/value map using the scoped key
// convention: product_columns for a Single shape, product_columns_<name>
// per sub-product otherwise.
func (a *Attributes) Flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(a.Extra)+8)
	for k, v := range a.Extra {
		if !reservedKeys[k] {
			out[k] = cloneValue(v)
		}
	}

	out[KeyProductName] = a.ProductName
	out[KeyProductString] = a.ProductString
	out[KeyProductType] = a.ProductType
	out[KeyStartTime] = optionalTime(a.StartTime)
	out[KeyEndTime] = optionalTime(a.EndTime)

	for _, s := range a.Scopes {
		suffix := ""
		if a.Shape == PerSubProduct {
			suffix = "_" + s.SubProduct
		}
		out[KeyProductColumns+suffix] = s.Columns
		out[KeyProductRows+suffix] = s.Rows
		out[KeyProductProcessing+suffix] = s.clone().Processing
	}
	return out
}

// Serialize renders the flattened attributes as strings for file writers:
// booleans become "True"/"False", missing values "None", timestamps
// YYYY-MM-DDTHH:MM:SS, and the coordinates key is dropped.
func (a *Attributes) Serialize() map[string]string {
	flat := a.Flatten()
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		if k == KeyCoordinates {
			continue
		}
		out[k] = SerializeValue(v)
	}
	return out
}

// SerializeValue renders one attribute value.
func SerializeValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return "None"
		}
		return val.UTC().Format(TimeLayout)
	case *time.Time:
		if val == nil || val.IsZero() {
			return "None"
		}
		return val.UTC().Format(TimeLayout)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func optionalTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func cloneExtra(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []string:
		return slices.Clone(val)
	case []int:
		return slices.Clone(val)
	case []float64:
		return slices.Clone(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]string:
		return maps.Clone(val)
	case map[string]interface{}:
		return cloneExtra(val)
	case []ProcessingEntry:
		out := make([]ProcessingEntry, len(val))
		for i, e := range val {
			out[i] = e.Clone()
		}
		return out
	default:
		return v
	}
}
