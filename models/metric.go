package models

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// MetricKind tells which shape a stored metric arrived in
type MetricKind int

const (
	// MetricAbsent means the field was missing, null or unreadable
	MetricAbsent MetricKind = iota
	// MetricNumber is a bare number, e.g. "followers_count": 12345
	MetricNumber
	// MetricWrapped is an object, e.g. "followers_count": {"avg_value": 12345, "change_pct": 2.1}
	MetricWrapped
)

// wrappedValueKeys are the sub-fields probed, in order, for the value of a wrapped metric
var wrappedValueKeys = []string{"avg_value", "value", "count", "total"}

// wrappedChangeKeys are the sub-fields probed, in order, for the change percentage of a wrapped metric
var wrappedChangeKeys = []string{"change_pct", "change", "growth_pct"}

// MetricValue is a metric field that may be stored either as a bare number or
// as an object wrapping the number. Decoding never fails: unknown shapes
// become MetricAbsent.
type MetricValue struct {
	Kind      MetricKind
	Number    float64
	AvgValue  float64
	ChangePct float64
}

// NumberMetric builds a bare-number metric
func NumberMetric(n float64) MetricValue {
	return MetricValue{Kind: MetricNumber, Number: n}
}

// WrappedMetric builds a wrapped metric
func WrappedMetric(avg, changePct float64) MetricValue {
	return MetricValue{Kind: MetricWrapped, AvgValue: avg, ChangePct: changePct}
}

// Value returns the numeric value regardless of shape, 0 when absent
func (m MetricValue) Value() float64 {
	switch m.Kind {
	case MetricNumber:
		return m.Number
	case MetricWrapped:
		return m.AvgValue
	default:
		return 0
	}
}

// Change returns the change percentage; only wrapped metrics carry one
func (m MetricValue) Change() float64 {
	if m.Kind == MetricWrapped {
		return m.ChangePct
	}
	return 0
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (m *MetricValue) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*m = metricFromRaw(bson.RawValue{Type: t, Value: data})
	return nil
}

func metricFromRaw(rv bson.RawValue) MetricValue {
	if n, ok := rawNumber(rv); ok {
		return NumberMetric(n)
	}
	doc, ok := rv.DocumentOK()
	if !ok {
		return MetricValue{}
	}
	for _, key := range wrappedValueKeys {
		v, err := doc.LookupErr(key)
		if err != nil {
			continue
		}
		avg, ok := rawNumber(v)
		if !ok {
			continue
		}
		var change float64
		for _, ck := range wrappedChangeKeys {
			if cv, err := doc.LookupErr(ck); err == nil {
				if c, ok := rawNumber(cv); ok {
					change = c
					break
				}
			}
		}
		return WrappedMetric(avg, change)
	}
	return MetricValue{}
}

// rawNumber reads any numeric BSON value, including numeric strings such as "12,345"
func rawNumber(rv bson.RawValue) (float64, bool) {
	switch rv.Type {
	case bsontype.Double:
		return rv.DoubleOK()
	case bsontype.Int32:
		i, ok := rv.Int32OK()
		return float64(i), ok
	case bsontype.Int64:
		i, ok := rv.Int64OK()
		return float64(i), ok
	case bsontype.Decimal128:
		d, ok := rv.Decimal128OK()
		if !ok {
			return 0, false
		}
		f, err := strconv.ParseFloat(d.String(), 64)
		return f, err == nil
	case bsontype.String:
		s, ok := rv.StringValueOK()
		if !ok {
			return 0, false
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// StringList decodes a field that may be an array of strings, a single string or absent
type StringList []string

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (l *StringList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*l = nil
	rv := bson.RawValue{Type: t, Value: data}
	if s, ok := rv.StringValueOK(); ok {
		if s = strings.TrimSpace(s); s != "" {
			*l = StringList{s}
		}
		return nil
	}
	arr, ok := rv.ArrayOK()
	if !ok {
		return nil
	}
	values, err := arr.Values()
	if err != nil {
		return nil
	}
	for _, v := range values {
		if s, ok := v.StringValueOK(); ok && strings.TrimSpace(s) != "" {
			*l = append(*l, strings.TrimSpace(s))
		}
	}
	return nil
}

// First returns the first entry or an empty string
func (l StringList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// MetricValueExpr is the store-side counterpart of the MetricValue decoder: an
// aggregation expression yielding the metric at field as a double, or null when
// no shape matches. A bare number or numeric string wins, then the first numeric
// wrapped value key.
func MetricValueExpr(field string) bson.M {
	ref := "$" + field
	candidates := bson.A{numberExpr(ref)}
	for _, key := range wrappedValueKeys {
		candidates = append(candidates, numberExpr(ref+"."+key))
	}
	return bson.M{"$ifNull": candidates}
}

// numberExpr converts ref to a double, stripping thousands separators from
// strings; anything else becomes null
func numberExpr(ref string) bson.M {
	return bson.M{"$switch": bson.M{
		"branches": bson.A{
			bson.M{"case": bson.M{"$isNumber": ref}, "then": bson.M{"$toDouble": ref}},
			bson.M{
				"case": bson.M{"$eq": bson.A{bson.M{"$type": ref}, "string"}},
				"then": bson.M{"$convert": bson.M{
					"input": bson.M{"$replaceAll": bson.M{
						"input":       bson.M{"$trim": bson.M{"input": ref}},
						"find":        ",",
						"replacement": "",
					}},
					"to":      "double",
					"onError": nil,
					"onNull":  nil,
				}},
			},
		},
		"default": nil,
	}}
}
