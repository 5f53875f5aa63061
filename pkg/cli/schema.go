package cli

import (
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema returns the JSON schema of the config file.
func Schema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[Config](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[Duration](): {
				Type:        "string",
				Description: "duration such as 100ms or 1m30s",
				Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	s.Title = "gizplay config"
	return s, nil
}
