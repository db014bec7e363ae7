package config

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Validate checks an Options against its struct tags (required fields,
// oneof enumerations, conditional requirements for VIP auth artifacts).
func Validate(o *Options) error {
	if err := validate.Struct(o); err != nil {
		return err
	}
	return nil
}
