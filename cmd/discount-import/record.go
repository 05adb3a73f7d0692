package main

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

// parseRecord decodes one NDJSON line into a discount definition. Unknown
// keys are rejected. Omitted active defaults to true.
func parseRecord(line []byte) (discount.Discount, error) {
	d := discount.Discount{Active: true}
	err := jx.DecodeBytes(line).ObjBytes(func(dec *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); k {
		case "name":
			d.Name, err = dec.Str()
		case "description":
			d.Description, err = dec.Str()
		case "kind":
			var s string
			s, err = dec.Str()
			d.Kind = discount.Kind(s)
		case "value":
			d.Value, err = decodeDecimal(dec)
		case "min_purchase_amount":
			d.MinPurchase, err = decodeNullDecimal(dec)
		case "max_discount_amount":
			d.MaxDiscount, err = decodeNullDecimal(dec)
		case "start_date":
			d.StartDate, err = decodeDate(dec)
		case "end_date":
			d.EndDate, err = decodeDate(dec)
		case "usage_limit":
			d.UsageLimit, err = decodeIntPtr(dec)
		case "customer_usage_limit":
			d.CustomerUsageLimit, err = decodeIntPtr(dec)
		case "applies_to":
			var s string
			s, err = dec.Str()
			d.AppliesTo = discount.Target(s)
		case "product_types":
			d.ProductTypes, err = decodeStrings(dec)
		case "category_ids":
			d.CategoryIDs, err = decodeStrings(dec)
		case "customer_tiers":
			d.CustomerTiers, err = decodeStrings(dec)
		case "bottle_return_count":
			d.BottleReturnCount, err = dec.Int()
		case "active":
			d.Active, err = dec.Bool()
		case "allow_partial_payment":
			d.AllowPartialPayment, err = dec.Bool()
		default:
			return errors.Errorf("unknown field %q", k)
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", string(key))
		}
		return nil
	})
	if err != nil {
		return discount.Discount{}, err
	}
	return d, nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(dec *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch dec.Next() {
	case jx.String:
		s, err := dec.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := dec.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.New("expected number or numeric string")
	}
	return decimal.NewFromString(raw)
}

func decodeNullDecimal(dec *jx.Decoder) (decimal.NullDecimal, error) {
	if dec.Next() == jx.Null {
		return decimal.NullDecimal{}, dec.Null()
	}
	v, err := decodeDecimal(dec)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func decodeDate(dec *jx.Decoder) (*time.Time, error) {
	if dec.Next() == jx.Null {
		return nil, dec.Null()
	}
	s, err := dec.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, errors.Wrap(err, "expected YYYY-MM-DD")
	}
	return &t, nil
}

func decodeIntPtr(dec *jx.Decoder) (*int, error) {
	if dec.Next() == jx.Null {
		return nil, dec.Null()
	}
	v, err := dec.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeStrings(dec *jx.Decoder) ([]string, error) {
	var out []string
	err := dec.Arr(func(dec *jx.Decoder) error {
		s, err := dec.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// nameKey normalises a discount name for duplicate detection.
func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
