// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

// ExplicitString is a go-flags string option that records whether the user
// supplied a value or the default was left in place.  The go-flags package
// cannot otherwise distinguish an untouched default from the same value set
// explicitly, and some options warrant stricter handling when the user asked
// for a value by name, such as failing on a missing config file instead of
// silently falling back.
type ExplicitString struct {
	Value         string
	explicitlySet bool
}

// NewExplicitString creates an ExplicitString holding the default value.
func NewExplicitString(defaultValue string) *ExplicitString {
	return &ExplicitString{Value: defaultValue}
}

// ExplicitlySet returns whether the option was set during flag or config
// file parsing rather than defaulted.
func (e *ExplicitString) ExplicitlySet() bool { return e.explicitlySet }

// MarshalFlag implements the flags.Marshaler interface.
func (e *ExplicitString) MarshalFlag() (string, error) { return e.Value, nil }

// UnmarshalFlag implements the flags.Unmarshaler interface.
func (e *ExplicitString) UnmarshalFlag(value string) error {
	e.Value = value
	e.explicitlySet = true
	return nil
}
