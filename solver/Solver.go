// Package solver wraps learner.Minimizer implementations so that a
// minimizer choice and its settings can be JSON marshalled into and out
// of configuration files.
package solver

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mrftools-go/mrftools/learner"
)

// Type describes a minimizer variant available to a config file.
type Type string

// LBFGSType is currently the only minimizer variant: the learning core
// only needs a black-box smooth minimizer, and first-order optimizers
// (SGD/AdaGrad/RMSProp/Adam) are explicitly out of scope for it. The
// Type/Config machinery stays general so a second variant (e.g. a
// different line search or memory size preset) can be added without
// touching callers that only know about Type and Config.
const LBFGSType Type = "LBFGS"

// Solver wraps a learner.Minimizer so it can be JSON marshalled and
// unmarshalled by Type.
type Solver struct {
	learner.Minimizer `json:"-"`
	Type
	Config
}

// New returns a new Solver with the given type and configuration.
func New(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("solver: invalid type %v for configuration %T", t, c)
	}
	s := Solver{Type: t, Config: c}
	s.Minimizer = s.Config.Create()
	return &s, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(LBFGSType): reflect.TypeOf(LBFGSConfig{}),
		})
	if err != nil {
		return err
	}

	s.Type = typeName
	s.Config = config
	s.Minimizer = s.Config.Create()
	return nil
}

// unmarshalConfig uses reflection to unmarshal a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJSONField, valueJSONField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName, ok := m[typeJSONField].(string)
	if !ok {
		return nil, "", fmt.Errorf("solver: missing or non-string %q field", typeJSONField)
	}

	var value Config
	if ty, found := customTypes[typeName]; found {
		value = reflect.New(ty).Interface().(Config)
	} else {
		return nil, "", fmt.Errorf("solver: unknown type %q", typeName)
	}

	valueBytes, err := json.Marshal(m[valueJSONField])
	if err != nil {
		return nil, "", err
	}
	if err := json.Unmarshal(valueBytes, value); err != nil {
		return nil, "", err
	}

	return value, Type(typeName), nil
}

// Config describes a minimizer configuration and can build the
// learner.Minimizer it describes.
type Config interface {
	Create() learner.Minimizer

	// ValidType returns whether t is the type this Config builds.
	ValidType(t Type) bool
}
