package config

import (
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Schema describes the JSON accepted by Read. Every field is optional since unset fields keep
// their defaults.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Mapper:                     durationSchema,
	}
	return reflector.Reflect(&Config{})
}

// durationSchema accepts both "500ms" style strings and nanoseconds.
func durationSchema(t reflect.Type) *jsonschema.Schema {
	if t != durationType {
		return nil
	}
	return &jsonschema.Schema{OneOf: []*jsonschema.Schema{{Type: "string"}, {Type: "integer"}}}
}
