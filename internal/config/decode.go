package config

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Decode converts a private field value into the Go value target points to.
// The value is first converted to the cty type implied by the target, so a
// catalog may write 3 or "3" for an integer knob.
func Decode(val cty.Value, target any) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("target for decoding must be a non-nil pointer, got %T", target)
	}
	if val.IsNull() {
		return fmt.Errorf("value is null")
	}
	if !val.IsWhollyKnown() {
		return fmt.Errorf("value is not known")
	}

	implied, err := gocty.ImpliedType(ptr.Elem().Interface())
	if err != nil {
		return gocty.FromCtyValue(val, target)
	}
	converted, err := convert.Convert(val, implied)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w",
			val.Type().FriendlyName(), implied.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, target)
}
