// Package wire describes the gRPC contract of the attribute service.
// Messages are protobuf well-known types, so neither side needs generated code.
package wire

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "catalogattr.v1.AttributeService"

// EntityMetadataKey carries the caller entity in request metadata
const EntityMetadataKey = "x-entity-id"

// Method names
const (
	MethodFetch              = "Fetch"
	MethodList               = "List"
	MethodCreate             = "Create"
	MethodUpdate             = "Update"
	MethodDelete             = "Delete"
	MethodCountChildProducts = "CountChildProducts"
	MethodMoveUp             = "MoveUp"
	MethodMoveDown           = "MoveDown"
	MethodNormalize          = "Normalize"
	MethodUpdateOrder        = "UpdateOrder"
)

// FullMethod returns the path of method, e.g. /catalogattr.v1.AttributeService/Fetch
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ErrMalformed is returned when a message does not have the expected shape
var ErrMalformed = errors.New("malformed message")

// maxExactInt is the largest integer a protobuf number (float64) holds exactly
const maxExactInt = 1 << 53

// Attribute is the transport form of a product attribute
type Attribute struct {
	ID        int64     `json:"id" yaml:"id"`
	Ref       string    `json:"ref" yaml:"ref"`
	Label     string    `json:"label" yaml:"label"`
	Rank      int       `json:"rank" yaml:"rank"`
	Entity    int64     `json:"entity,omitempty" yaml:"entity,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// ToStruct encodes the attribute. Zero ids, entities and times are omitted.
func (a *Attribute) ToStruct() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"ref":   structpb.NewStringValue(a.Ref),
		"label": structpb.NewStringValue(a.Label),
		"rank":  structpb.NewNumberValue(float64(a.Rank)),
	}
	if a.ID != 0 {
		fields["id"] = structpb.NewNumberValue(float64(a.ID))
	}
	if a.Entity != 0 {
		fields["entity"] = structpb.NewNumberValue(float64(a.Entity))
	}
	if !a.CreatedAt.IsZero() {
		fields["created_at"] = structpb.NewStringValue(a.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	if !a.UpdatedAt.IsZero() {
		fields["updated_at"] = structpb.NewStringValue(a.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}
}

// AttributeFromStruct decodes an attribute. Missing fields keep their zero value.
func AttributeFromStruct(s *structpb.Struct) (*Attribute, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: attribute is required", ErrMalformed)
	}

	var (
		a   Attribute
		err error
	)
	fields := s.GetFields()

	if a.ID, err = intField(fields, "id"); err != nil {
		return nil, err
	}
	if a.Entity, err = intField(fields, "entity"); err != nil {
		return nil, err
	}
	rank, err := intField(fields, "rank")
	if err != nil {
		return nil, err
	}
	a.Rank = int(rank)

	if a.Ref, err = stringField(fields, "ref"); err != nil {
		return nil, err
	}
	if a.Label, err = stringField(fields, "label"); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = timeField(fields, "created_at"); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = timeField(fields, "updated_at"); err != nil {
		return nil, err
	}

	return &a, nil
}

// IDsToList encodes an ordered id list
func IDsToList(ids []int64) *structpb.ListValue {
	values := make([]*structpb.Value, len(ids))
	for i, id := range ids {
		values[i] = structpb.NewNumberValue(float64(id))
	}
	return &structpb.ListValue{Values: values}
}

// IDsFromList decodes an ordered id list
func IDsFromList(l *structpb.ListValue) ([]int64, error) {
	values := l.GetValues()
	ids := make([]int64, len(values))
	for i, v := range values {
		id, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("%w: ids[%d]: %w", ErrMalformed, i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// AttributesToList encodes attributes in order
func AttributesToList(attrs []*Attribute) *structpb.ListValue {
	values := make([]*structpb.Value, len(attrs))
	for i, a := range attrs {
		values[i] = structpb.NewStructValue(a.ToStruct())
	}
	return &structpb.ListValue{Values: values}
}

// AttributesFromList decodes a list of attribute structs
func AttributesFromList(l *structpb.ListValue) ([]*Attribute, error) {
	values := l.GetValues()
	attrs := make([]*Attribute, len(values))
	for i, v := range values {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: item %d is not an attribute", ErrMalformed, i)
		}
		a, err := AttributeFromStruct(s)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		attrs[i] = a
	}
	return attrs, nil
}

func intField(fields map[string]*structpb.Value, name string) (int64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q: %w", ErrMalformed, name, err)
	}
	return n, nil
}

func toInt(v *structpb.Value) (int64, error) {
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, errors.New("not a number")
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func stringField(fields map[string]*structpb.Value, name string) (string, error) {
	v, ok := fields[name]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: field %q is not a string", ErrMalformed, name)
	}
	return s.StringValue, nil
}

func timeField(fields map[string]*structpb.Value, name string) (time.Time, error) {
	s, err := stringField(fields, name)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: field %q: %w", ErrMalformed, name, err)
	}
	return t, nil
}
