package trafo

import (
	"fmt"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
)

// Encode converts t into a tagged value tree. Reverse domains are not
// stored; Decode derives them again from the domain.
func Encode(t Transformation) (schema.Object, error) {
	d := t.Domain()
	obj := schema.Object{
		"kind":   schema.String(t.Kind()),
		"domain": schema.Floats([]float64{d.Lower, d.Upper}),
	}
	switch v := t.(type) {
	case *Constant:
		obj["value"] = schema.Float(v.value)
	case *Polynomial:
		obj["data"] = schema.Floats(v.coeffs)
	case *NegativePowersPolynomial:
		obj["data"] = schema.Floats(v.coeffs)
	case *OneOverPolynomial:
		obj["data"] = schema.Floats(v.poly.coeffs)
	case *InvQuadraticPol:
		obj["data"] = schema.Floats(v.data[:])
		obj["negative"] = schema.Bool(v.negative)
	case *Lookup:
		obj["data"] = schema.Floats(v.data)
		obj["offset"] = schema.Int(v.offset)
	case *SumOfTrafos:
		children := make(schema.List, len(v.children))
		for i, c := range v.children {
			enc, err := Encode(c)
			if err != nil {
				return nil, fmt.Errorf("summand %d: %w", i, err)
			}
			children[i] = enc
		}
		obj["children"] = children
	case *PowerOfTrafo:
		obj["power"] = schema.Float(v.power)
		if v.child != nil {
			enc, err := Encode(v.child)
			if err != nil {
				return nil, fmt.Errorf("base: %w", err)
			}
			obj["child"] = enc
		}
	default:
		return nil, fmt.Errorf("unknown transformation type: %T", t)
	}
	return obj, nil
}

// Decode is the inverse of Encode.
func Decode(obj schema.Object) (Transformation, error) {
	kind, err := obj.String("kind")
	if err != nil {
		return nil, err
	}
	domain, err := decodeDomain(obj)
	if err != nil {
		return nil, err
	}

	var t Transformation
	switch Kind(kind) {
	case KindConstant:
		v, err := obj.Float("value")
		if err != nil {
			return nil, err
		}
		t = NewConstant(v)
	case KindPolynomial:
		data, err := floats(obj, "data")
		if err != nil {
			return nil, err
		}
		p, err := NewPolynomial(data, domain.Lower, domain.Upper)
		if err != nil {
			return nil, err
		}
		t = p
	case KindNegativePowersPolynomial:
		data, err := floats(obj, "data")
		if err != nil {
			return nil, err
		}
		p, err := NewNegativePowersPolynomial(data, domain.Lower, domain.Upper)
		if err != nil {
			return nil, err
		}
		t = p
	case KindOneOverPolynomial:
		data, err := floats(obj, "data")
		if err != nil {
			return nil, err
		}
		p, err := NewOneOverPolynomial(data, domain.Lower, domain.Upper)
		if err != nil {
			return nil, err
		}
		t = p
	case KindInvQuadraticPol:
		data, err := floats(obj, "data")
		if err != nil {
			return nil, err
		}
		negative, err := obj.Bool("negative")
		if err != nil {
			return nil, err
		}
		p, err := NewInvQuadraticPol(data, negative, domain.Lower, domain.Upper)
		if err != nil {
			return nil, err
		}
		t = p
	case KindLookup:
		data, err := floats(obj, "data")
		if err != nil {
			return nil, err
		}
		offset, err := obj.Int("offset")
		if err != nil {
			return nil, err
		}
		l, err := NewLookup(data, int(offset))
		if err != nil {
			return nil, err
		}
		t = l
	case KindSumOfTrafos:
		list, err := obj.List("children")
		if err != nil {
			return nil, err
		}
		children := make([]Transformation, len(list))
		for i, item := range list {
			child, ok := item.(schema.Object)
			if !ok {
				return nil, calerr.Incompatible("children", "summand %d: expected object, got %T", i, item)
			}
			if children[i], err = Decode(child); err != nil {
				return nil, fmt.Errorf("summand %d: %w", i, err)
			}
		}
		t = NewSumOfTrafos(children...)
	case KindPowerOfTrafo:
		power, err := obj.Float("power")
		if err != nil {
			return nil, err
		}
		var child Transformation
		if obj.Has("child") {
			enc, err := obj.Object("child")
			if err != nil {
				return nil, err
			}
			if child, err = Decode(enc); err != nil {
				return nil, fmt.Errorf("base: %w", err)
			}
		}
		t = NewPowerOfTrafo(power, child)
	default:
		return nil, calerr.Incompatible(kind, "unknown transformation kind %q", kind)
	}

	if t.Domain() != domain {
		if err := t.SetDomain(domain.Lower, domain.Upper); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func decodeDomain(obj schema.Object) (Domain, error) {
	d, err := floats(obj, "domain")
	if err != nil {
		return Domain{}, err
	}
	if len(d) != 2 {
		return Domain{}, calerr.Incompatible("domain", "expected 2 bounds, got %d", len(d))
	}
	return Domain{d[0], d[1]}, nil
}

func floats(obj schema.Object, key string) ([]float64, error) {
	l, err := obj.List(key)
	if err != nil {
		return nil, err
	}
	return l.Floats()
}
