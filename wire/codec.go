// Package wire implements the dual-format (ordinal/named) serializer: the
// positional-vs-named array/object encoding, the $type/$value polymorphic
// wrapper, and the $id/$ref reference graph.
//
// Encoding builds on encoding/json rather than a hand-rolled tokenizer:
// Encode constructs an intermediate tree of maps/slices/orderedFields and
// hands it to json.Marshal; Decode unmarshals into a generic any tree with
// json.Decoder.UseNumber() and walks that tree against the registry's
// OrdinalMetadata. This mirrors how the teacher's own request/response DTOs
// lean on encoding/json rather than reimplementing JSON.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/arc-self/neatoo/neatooerr"
	"github.com/arc-self/neatoo/registry"
)

// Codec encodes and decodes values against one Format, resolving
// polymorphic and registered types through reg.
type Codec struct {
	reg    *registry.Registry
	format Format
}

// New returns a Codec bound to a registry and wire format.
func New(reg *registry.Registry, format Format) *Codec {
	return &Codec{reg: reg, format: format}
}

// Format reports the wire format this Codec encodes/decodes.
func (c *Codec) Format() Format { return c.format }

// Encode serializes value using the Codec's format. value's own dynamic
// type is used directly (no top-level $type wrapper) — callers that need a
// polymorphic top-level slot should encode through a struct field declared
// as an interface instead, since that is the only place the wire protocol
// wraps a value with $type/$value (see package wire doc and SPEC_FULL §7's
// envelope framing decision).
func (c *Codec) Encode(value any) ([]byte, error) {
	sess := &encodeSession{reg: c.reg, format: c.format, ids: make(map[uintptr]int), next: 1}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return json.Marshal(nil)
	}
	tree, err := sess.encodeConcrete(rv, rv.Type())
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// EncodeAs serializes value as declaredType's slot: if declaredType is an
// interface, the result carries a $type/$value wrapper even though value's
// own concrete type would otherwise encode unwrapped under Encode. Used for
// parameters and return values whose declared (not dynamic) type determines
// whether the wire form needs the polymorphic wrapper.
func (c *Codec) EncodeAs(value any, declaredType reflect.Type) ([]byte, error) {
	sess := &encodeSession{reg: c.reg, format: c.format, ids: make(map[uintptr]int), next: 1}
	tree, err := sess.encodeSlot(reflect.ValueOf(value), declaredType)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// DecodeAs deserializes data as declaredType's slot and returns the decoded
// value (its dynamic type is declaredType or, for an interface declaredType,
// whatever concrete type the $type wrapper named).
func (c *Codec) DecodeAs(data []byte, declaredType reflect.Type) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: invalid JSON: %v", err)
	}
	sess := &decodeSession{reg: c.reg, format: c.format, refs: make(map[int]any)}
	return sess.decodeSlot(raw, declaredType)
}

// Decode deserializes data into outPtr, which must be a non-nil pointer.
// outPtr's pointee type is the declared type of the top-level value; if it
// is an interface type, the payload must carry a $type/$value wrapper.
func (c *Codec) Decode(data []byte, outPtr any) error {
	outVal := reflect.ValueOf(outPtr)
	if outVal.Kind() != reflect.Ptr || outVal.IsNil() {
		return fmt.Errorf("wire: Decode target must be a non-nil pointer")
	}
	declaredType := outVal.Elem().Type()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: invalid JSON: %v", err)
	}

	sess := &decodeSession{reg: c.reg, format: c.format, refs: make(map[int]any)}
	val, err := sess.decodeSlot(raw, declaredType)
	if err != nil {
		return err
	}
	return assignInto(outVal.Elem(), val)
}

// ---- encode ----

type encodeSession struct {
	reg    *registry.Registry
	format Format
	ids    map[uintptr]int
	next   int
}

// encodeSlot encodes rv into declaredType's slot. When declaredType is an
// interface, the value is wrapped in {$type,$value} so the decoder can
// recover the concrete type without knowing it ahead of time.
func (s *encodeSession) encodeSlot(rv reflect.Value, declaredType reflect.Type) (any, error) {
	if declaredType != nil && declaredType.Kind() == reflect.Interface {
		if !rv.IsValid() || (rv.Kind() == reflect.Interface && rv.IsNil()) || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
			return nil, nil
		}
		if rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
		concreteType := rv.Type()
		typeName, ok := s.reg.TypeName(concreteType)
		if !ok {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: type %s is not registered, cannot encode polymorphic slot", concreteType)
		}
		inner, err := s.encodeConcrete(rv, concreteType)
		if err != nil {
			return nil, err
		}
		return typeWrapper{Type: typeName, Value: inner}, nil
	}
	return s.encodeConcrete(rv, declaredType)
}

type typeWrapper struct {
	Type  string `json:"$type"`
	Value any    `json:"$value"`
}

func (s *encodeSession) encodeConcrete(rv reflect.Value, concreteType reflect.Type) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		elemType := concreteType.Elem()
		entry, ok := s.reg.Entry(elemType)
		if ok && entry.Reference {
			return s.encodeReference(rv, entry)
		}
		return s.encodeConcrete(rv.Elem(), elemType)

	case reflect.Struct:
		entry, ok := s.reg.Entry(concreteType)
		if !ok || entry.Ordinal == nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: type %s is not registered", concreteType)
		}
		switch s.format {
		case FormatNamed:
			return s.propsNamed(rv, entry)
		default:
			return s.propsOrdinal(rv, entry)
		}

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		elemDeclared := concreteType.Elem()
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			encoded, err := s.encodeSlot(rv.Index(i), elemDeclared)
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Interface(), nil

	default:
		return nil, fmt.Errorf("wire: cannot encode kind %s", rv.Kind())
	}
}

// encodeReference handles a pointer to a Reference-tagged registered type:
// first encounter emits the full payload tagged with an id, repeats emit a
// short $ref/ "ref" marker instead of re-walking the object.
func (s *encodeSession) encodeReference(rv reflect.Value, entry *registry.Entry) (any, error) {
	addr := rv.Pointer()
	if id, seen := s.ids[addr]; seen {
		switch s.format {
		case FormatNamed:
			obj := newOrderedFields(1)
			obj.set("$ref", id)
			return obj, nil
		default:
			return []any{"ref", id}, nil
		}
	}

	id := s.next
	s.next++
	s.ids[addr] = id

	switch s.format {
	case FormatNamed:
		obj, err := s.propsNamed(rv.Elem(), entry)
		if err != nil {
			return nil, err
		}
		withID := newOrderedFields(len(obj.keys) + 1)
		withID.set("$id", id)
		for i, k := range obj.keys {
			withID.set(k, obj.vals[i])
		}
		return withID, nil
	default:
		values, err := s.propsOrdinal(rv.Elem(), entry)
		if err != nil {
			return nil, err
		}
		return []any{"id", id, values}, nil
	}
}

func (s *encodeSession) propsOrdinal(rv reflect.Value, entry *registry.Entry) ([]any, error) {
	values, err := entry.Ordinal.ToOrdinal(ptrOf(rv).Interface())
	if err != nil {
		return nil, err
	}
	if len(values) != len(entry.Ordinal.PropertyNames) {
		return nil, fmt.Errorf("wire: %s.ToOrdinal returned %d values, want %d", entry.Name, len(values), len(entry.Ordinal.PropertyNames))
	}
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = nil
			continue
		}
		encoded, err := s.encodeSlot(reflect.ValueOf(v), entry.Ordinal.PropertyTypes[i])
		if err != nil {
			return nil, err
		}
		out[i] = encoded
	}
	return out, nil
}

func (s *encodeSession) propsNamed(rv reflect.Value, entry *registry.Entry) (*orderedFields, error) {
	values, err := entry.Ordinal.ToOrdinal(ptrOf(rv).Interface())
	if err != nil {
		return nil, err
	}
	if len(values) != len(entry.Ordinal.PropertyNames) {
		return nil, fmt.Errorf("wire: %s.ToOrdinal returned %d values, want %d", entry.Name, len(values), len(entry.Ordinal.PropertyNames))
	}
	obj := newOrderedFields(len(values))
	for i, v := range values {
		var encoded any
		if v != nil {
			encoded, err = s.encodeSlot(reflect.ValueOf(v), entry.Ordinal.PropertyTypes[i])
			if err != nil {
				return nil, err
			}
		}
		obj.set(entry.Ordinal.PropertyNames[i], encoded)
	}
	return obj, nil
}

// ptrOf returns an addressable pointer to rv's value, copying if rv is not
// already addressable. ToOrdinal/FromOrdinal always operate on *T.
func ptrOf(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv.Addr()
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	return ptr
}

// ---- decode ----

type decodeSession struct {
	reg    *registry.Registry
	format Format
	refs   map[int]any
}

func (s *decodeSession) decodeSlot(raw any, declaredType reflect.Type) (any, error) {
	if declaredType.Kind() == reflect.Interface {
		if raw == nil {
			return nil, nil
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected $type/$value wrapper object for polymorphic slot")
		}
		typeNameRaw, hasType := obj["$type"]
		if !hasType {
			typeNameRaw, hasType = obj["$t"]
		}
		if !hasType {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: polymorphic slot missing $type")
		}
		typeName, _ := typeNameRaw.(string)
		concreteType, ok := s.reg.FindType(typeName)
		if !ok {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: unknown $type %q", typeName)
		}
		valueRaw, hasValue := obj["$value"]
		if !hasValue {
			valueRaw, hasValue = obj["$v"]
		}
		if !hasValue {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: polymorphic slot missing $value")
		}
		return s.decodeConcrete(valueRaw, reflect.PointerTo(concreteType))
	}
	return s.decodeConcrete(raw, declaredType)
}

func (s *decodeSession) decodeConcrete(raw any, typ reflect.Type) (any, error) {
	elemType := typ
	wantPointer := false
	if typ.Kind() == reflect.Ptr {
		elemType = typ.Elem()
		wantPointer = true
	}

	if elemType.Kind() == reflect.Struct {
		entry, ok := s.reg.Entry(elemType)
		if !ok || entry.Ordinal == nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: type %s is not registered", elemType)
		}
		if entry.Reference && wantPointer {
			return s.decodeReference(raw, elemType, entry)
		}
		return s.decodeStructProps(raw, entry)
	}

	switch elemType.Kind() {
	case reflect.Slice:
		if raw == nil {
			return reflect.Zero(typ).Interface(), nil
		}
		arr, ok := raw.([]any)
		if !ok {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected array")
		}
		sliceVal := reflect.MakeSlice(elemType, len(arr), len(arr))
		itemDeclared := elemType.Elem()
		for i, item := range arr {
			v, err := s.decodeSlot(item, itemDeclared)
			if err != nil {
				return nil, err
			}
			if err := assignInto(sliceVal.Index(i), v); err != nil {
				return nil, err
			}
		}
		return sliceVal.Interface(), nil

	case reflect.Bool:
		if raw == nil {
			return false, nil
		}
		b, ok := raw.(bool)
		if !ok {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected bool")
		}
		return b, nil

	case reflect.String:
		if raw == nil {
			return "", nil
		}
		str, ok := raw.(string)
		if !ok {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected string")
		}
		return str, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if raw == nil {
			return reflect.Zero(elemType).Interface(), nil
		}
		num, ok := raw.(json.Number)
		if !ok {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected number")
		}
		n, err := num.Int64()
		if err != nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: %v", err)
		}
		return reflect.ValueOf(n).Convert(elemType).Interface(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if raw == nil {
			return reflect.Zero(elemType).Interface(), nil
		}
		num, ok := raw.(json.Number)
		if !ok {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected number")
		}
		n, err := num.Int64()
		if err != nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: %v", err)
		}
		return reflect.ValueOf(n).Convert(elemType).Interface(), nil

	case reflect.Float32, reflect.Float64:
		if raw == nil {
			return reflect.Zero(elemType).Interface(), nil
		}
		num, ok := raw.(json.Number)
		if !ok {
			return nil, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected number")
		}
		f, err := num.Float64()
		if err != nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: %v", err)
		}
		return reflect.ValueOf(f).Convert(elemType).Interface(), nil

	default:
		return nil, fmt.Errorf("wire: cannot decode kind %s", elemType.Kind())
	}
}

// decodeStructProps decodes raw into entry's ordinal/named shape and calls
// FromOrdinal, with no reference-identity tracking. Used for value types and
// for reference types whose declared slot is a struct value, not a pointer.
func (s *decodeSession) decodeStructProps(raw any, entry *registry.Entry) (any, error) {
	meta := entry.Ordinal
	values := make([]any, len(meta.PropertyNames))

	switch s.format {
	case FormatNamed:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: expected object for %s", entry.Name)
		}
		for i, name := range meta.PropertyNames {
			fieldRaw, present := obj[name]
			if !present {
				continue
			}
			decoded, err := s.decodeSlot(fieldRaw, meta.PropertyTypes[i])
			if err != nil {
				return nil, err
			}
			values[i] = decoded
		}
	default:
		arr, ok := raw.([]any)
		if !ok {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: expected array for %s", entry.Name)
		}
		if len(arr) > len(meta.PropertyNames) {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: %s: %d values, expected at most %d", entry.Name, len(arr), len(meta.PropertyNames))
		}
		for i := range meta.PropertyNames {
			if i >= len(arr) {
				if !isNullableKind(meta.PropertyTypes[i]) {
					return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch,
						"wire: %s: missing trailing value for non-nullable property %q", entry.Name, meta.PropertyNames[i])
				}
				continue
			}
			decoded, err := s.decodeSlot(arr[i], meta.PropertyTypes[i])
			if err != nil {
				return nil, err
			}
			values[i] = decoded
		}
	}

	return meta.FromOrdinal(values)
}

// isNullableKind reports whether t's zero value is a legitimate stand-in
// for "absent" — a pointer, interface, slice, or map can all be left nil.
// A short ordinal array is only tolerated when every missing trailing
// property has one of these kinds; anything else (bool, int, string,
// struct) silently defaulting to its zero value would hide a genuine
// serialization mismatch.
func isNullableKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	default:
		return false
	}
}

// decodeReference decodes a pointer to a Reference-tagged type, resolving
// $id/$ref ("id"/"ref" tags in Ordinal). A placeholder pointer is registered
// under its id before the object's properties are decoded, so that a
// self- or mutually-referencing $ref encountered mid-decode resolves to the
// same Go pointer the fully-populated value will end up being. Once
// FromOrdinal returns the real value, its contents are copied into the
// placeholder and the placeholder is what's returned, preserving identity
// for every earlier-resolved $ref to this id.
func (s *decodeSession) decodeReference(raw any, elemType reflect.Type, entry *registry.Entry) (any, error) {
	switch s.format {
	case FormatNamed:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: expected object for %s", entry.Name)
		}
		if refRaw, has := obj["$ref"]; has {
			id, err := decodeID(refRaw)
			if err != nil {
				return nil, err
			}
			v, ok := s.refs[id]
			if !ok {
				return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: unresolved $ref %d", id)
			}
			return v, nil
		}
		idRaw, has := obj["$id"]
		if !has {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: %s: expected $id or $ref", entry.Name)
		}
		id, err := decodeID(idRaw)
		if err != nil {
			return nil, err
		}
		placeholder := reflect.New(elemType)
		s.refs[id] = placeholder.Interface()
		return s.populate(obj, entry, placeholder)

	default:
		arr, ok := raw.([]any)
		if !ok || len(arr) < 2 {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: expected [tag, id, ...] for %s", entry.Name)
		}
		tag, _ := arr[0].(string)
		id, err := decodeID(arr[1])
		if err != nil {
			return nil, err
		}
		switch tag {
		case "ref":
			v, ok := s.refs[id]
			if !ok {
				return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: unresolved $ref %d", id)
			}
			return v, nil
		case "id":
			if len(arr) != 3 {
				return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: malformed id envelope for %s", entry.Name)
			}
			placeholder := reflect.New(elemType)
			s.refs[id] = placeholder.Interface()
			return s.populate(arr[2], entry, placeholder)
		default:
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: unknown reference tag %q", tag)
		}
	}
}

func (s *decodeSession) populate(raw any, entry *registry.Entry, placeholder reflect.Value) (any, error) {
	constructed, err := s.decodeStructProps(raw, entry)
	if err != nil {
		return nil, err
	}
	cv := reflect.ValueOf(constructed)
	if cv.IsValid() && cv.Kind() == reflect.Ptr && cv.Type() == placeholder.Type() && !cv.IsNil() {
		placeholder.Elem().Set(cv.Elem())
		return placeholder.Interface(), nil
	}
	return constructed, nil
}

func decodeID(raw any) (int, error) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, neatooerr.New(neatooerr.KindSerializationMismatch, "wire: expected numeric id")
	}
	n, err := num.Int64()
	if err != nil {
		return 0, neatooerr.Newf(neatooerr.KindSerializationMismatch, "wire: %v", err)
	}
	return int(n), nil
}

// assignInto stores v into dst, which may be an interface field/slot (v is
// stored as-is) or a concrete-typed field (v is converted if needed).
func assignInto(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if dst.Kind() == reflect.Interface {
		dst.Set(rv)
		return nil
	}
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("wire: cannot assign %s into %s", rv.Type(), dst.Type())
}
