package reflectmeta

import (
	"fmt"
	"reflect"
	"time"

	"github.com/csvmigrate/engine/metamodel"
)

type property struct {
	owner   *class
	field   reflect.StructField
	index   int
	name    string
	roleStr string
}

func (p *property) Owner() metamodel.Class { return p.owner }
func (p *property) Name() string           { return p.name }

func (p *property) elemType() reflect.Type {
	t := p.field.Type
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func (p *property) Type() (metamodel.Class, bool) {
	t := p.elemType()
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	return p.owner.registry.classByType(t)
}

func (p *property) roleKind() metamodel.Role {
	switch p.roleStr {
	case "owner":
		return metamodel.RoleOwner
	case "dependent":
		return metamodel.RoleDependent
	case "independent":
		return metamodel.RoleIndependent
	default:
		return metamodel.RolePlain
	}
}

func (p *property) Role() metamodel.Role { return p.roleKind() }

func (p *property) Collection() bool {
	return p.field.Type.Kind() == reflect.Slice
}

func (p *property) Boolean() bool {
	t := p.field.Type
	return t.Kind() == reflect.Bool
}

func (p *property) fieldValue(instance any) (reflect.Value, error) {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("reflectmeta: %s.%s: instance must be a non-nil pointer", p.owner.name, p.name)
	}
	elem := v.Elem()
	if elem.Type() != p.owner.structType {
		return reflect.Value{}, fmt.Errorf("reflectmeta: %s.%s: instance is %s, expected *%s", p.owner.name, p.name, elem.Type(), p.owner.structType)
	}
	return elem.Field(p.index), nil
}

func (p *property) Get(instance any) (any, bool) {
	fv, err := p.fieldValue(instance)
	if err != nil {
		return nil, false
	}
	switch fv.Kind() {
	case reflect.Ptr, reflect.Slice:
		if fv.IsNil() {
			return nil, false
		}
	case reflect.String:
		if fv.Len() == 0 {
			return nil, false
		}
	default:
		if fv.IsZero() {
			return nil, false
		}
	}
	return fv.Interface(), true
}

func (p *property) Set(instance any, value any) error {
	fv, err := p.fieldValue(instance)
	if err != nil {
		return err
	}
	if !fv.CanSet() {
		return fmt.Errorf("reflectmeta: %s.%s: field is not settable", p.owner.name, p.name)
	}
	converted, err := convert(fv.Type(), value)
	if err != nil {
		return fmt.Errorf("reflectmeta: %s.%s: %w", p.owner.name, p.name, err)
	}
	fv.Set(converted)
	return nil
}

func (p *property) Append(instance any, value any) error {
	fv, err := p.fieldValue(instance)
	if err != nil {
		return err
	}
	if fv.Kind() != reflect.Slice {
		return fmt.Errorf("reflectmeta: %s.%s: not a collection property", p.owner.name, p.name)
	}
	converted, err := convert(fv.Type().Elem(), value)
	if err != nil {
		return fmt.Errorf("reflectmeta: %s.%s: %w", p.owner.name, p.name, err)
	}
	fv.Set(reflect.Append(fv, converted))
	return nil
}

// convert adapts a loosely-typed value (string, int64, float64, bool,
// time.Time, or a registered domain pointer) to the target field type.
func convert(target reflect.Type, value any) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if target.Kind() == reflect.String && v.Kind() != reflect.String {
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target), nil
	}
	if v.Type().ConvertibleTo(target) && isScalarKind(v.Kind()) && isScalarKind(target.Kind()) {
		return v.Convert(target), nil
	}
	if target == reflect.TypeOf(time.Time{}) {
		if t, ok := value.(time.Time); ok {
			return reflect.ValueOf(t), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", value, target)
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
