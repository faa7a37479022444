package app

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared by every service that checks request structs.
var validate = validator.New()
