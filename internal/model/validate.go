package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cleared-dev/grandlivre/internal/id"
)

var validate = newValidator()

var fieldValidators = map[string]func(validator.FieldLevel) bool{
	"nature":  validateNature,
	"chart":   validateChart,
	"journal": validateJournal,
}

func newValidator() *validator.Validate {
	v := validator.New()
	for tag, fn := range fieldValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("registering %s validator: %v", tag, err))
		}
	}
	return v
}

// InvalidInputError lists the fields of a request that failed validation.
type InvalidInputError struct {
	Problems []string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

// Validate checks the `validate` struct tags of a request.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return &InvalidInputError{Problems: problems}
}

func validateNature(field validator.FieldLevel) bool {
	if value, ok := field.Field().Interface().(Nature); ok {
		return value == "" || value.Valid()
	}
	return false
}

func validateChart(field validator.FieldLevel) bool {
	if value, ok := field.Field().Interface().(Chart); ok {
		return value.Valid()
	}
	return false
}

func validateJournal(field validator.FieldLevel) bool {
	return id.ValidJournal(field.Field().String())
}
