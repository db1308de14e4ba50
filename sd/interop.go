package sd

import (
	"fmt"
	"sort"
)

// ToAny deep copies v into plain Go values: nil, bool, sized integers,
// floats, string, []any and map[uint64]any.
func ToAny(v Value) any {
	switch v.typ {
	case TypeNull:
		return nil
	case TypeBool:
		return v.Bool()
	case TypeUint8:
		return uint8(v.bits)
	case TypeUint16:
		return uint16(v.bits)
	case TypeUint32:
		return uint32(v.bits)
	case TypeUint64:
		return v.bits
	case TypeInt8:
		return int8(v.bits)
	case TypeInt16:
		return int16(v.bits)
	case TypeInt32:
		return int32(v.bits)
	case TypeInt64:
		return int64(v.bits)
	case TypeFloat32:
		return v.Float32()
	case TypeFloat64:
		return v.Float64()
	case TypeString:
		return v.String()
	case TypeArray:
		a := v.Array()
		out := make([]any, a.Len())
		for i := range out {
			out[i] = ToAny(a.items[i])
		}
		return out
	case TypeObject:
		o := v.Object()
		out := make(map[uint64]any, o.Len())
		for _, e := range o.entries {
			out[e.Hash] = ToAny(e.Value)
		}
		return out
	}
	return nil
}

// FromAny builds a value tree from plain Go values. Maps may be keyed by
// string, which is hashed, or by uint64 hashes. Map properties are added
// in sorted key order. The caller owns the result.
func FromAny(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return NewBool(x), nil
	case uint8:
		return NewUint8(x), nil
	case uint16:
		return NewUint16(x), nil
	case uint32:
		return NewUint32(x), nil
	case uint64:
		return NewUint64(x), nil
	case uint:
		return NewUint64(uint64(x)), nil
	case int8:
		return NewInt8(x), nil
	case int16:
		return NewInt16(x), nil
	case int32:
		return NewInt32(x), nil
	case int64:
		return NewInt64(x), nil
	case int:
		return NewInt64(int64(x)), nil
	case float32:
		return NewFloat32(x), nil
	case float64:
		return NewFloat64(x), nil
	case string:
		return NewString(x), nil
	case []any:
		v := NewArray()
		for _, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				v.Free()
				return Value{}, err
			}
			v.Array().Push(&iv)
		}
		return v, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		v := NewObject()
		for _, k := range keys {
			pv, err := FromAny(x[k])
			if err != nil {
				v.Free()
				return Value{}, err
			}
			v.Object().Set(k, &pv)
		}
		return v, nil
	case map[uint64]any:
		hashes := make([]uint64, 0, len(x))
		for h := range x {
			hashes = append(hashes, h)
		}
		sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

		v := NewObject()
		for _, h := range hashes {
			pv, err := FromAny(x[h])
			if err != nil {
				v.Free()
				return Value{}, err
			}
			v.Object().RawSet(h, &pv)
		}
		return v, nil
	}
	return Value{}, fmt.Errorf("sd: unsupported type %T", x)
}
