package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrForbidden         = errors.New("you do not have permission to perform this action")
	ErrBadCreds          = errors.New("invalid username or password")
	ErrUsernameTaken     = errors.New("this username is already taken")
	ErrRegistrationTaken = errors.New("this company registration number is already registered")
)

// NonFieldErrors is the key for problems that belong to no single field.
const NonFieldErrors = "non_field_errors"

// ValidationError carries every field problem found, keyed by field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.add(field, msg)
	return e
}

// NotFoundError names the missing resource. FromPath marks lookups of the
// resource the request URL addresses, as opposed to ids inside a body.
// FromCart marks a product that was deleted after it went into a cart; that
// is a bad request rather than a missing resource.
type NotFoundError struct {
	Resource string
	ID       any
	FromPath bool
	FromCart bool
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// Detail is the client-facing message.
func (e *NotFoundError) Detail() string {
	if e.FromPath {
		return fmt.Sprintf("No %s matches the given query.", strings.ToUpper(e.Resource[:1])+e.Resource[1:])
	}
	return fmt.Sprintf("Invalid pk %q - object does not exist.", fmt.Sprint(e.ID))
}

type InsufficientStockError struct {
	ProductID   int
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock to order %s(%d): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

type PriceMismatchError struct {
	Expected int
	Got      int
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("total_price does not match; the calculated amount is %d (got %d)", e.Expected, e.Got)
}
