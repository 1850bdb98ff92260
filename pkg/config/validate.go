package config

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Validate checks cfg's struct tags and cross-field constraints (an
// enabled transport must carry a listen address).
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}
