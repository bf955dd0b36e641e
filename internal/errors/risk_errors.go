package errors

import (
	"fmt"
)

// ErrorCategory represents the class of a hard risk-engine failure
type ErrorCategory string

const (
	ErrorCategoryInvalidInput   ErrorCategory = "INVALID_INPUT"
	ErrorCategoryDivisionByZero ErrorCategory = "DIVISION_BY_ZERO"
	ErrorCategoryConfiguration  ErrorCategory = "CONFIG"
)

// Sentinels for errors.Is; a RiskError matches the sentinel of its category.
var (
	ErrInvalidInput         = &RiskError{Category: ErrorCategoryInvalidInput, Message: "invalid input"}
	ErrDivisionByZero       = &RiskError{Category: ErrorCategoryDivisionByZero, Message: "division by zero"}
	ErrInvalidConfiguration = &RiskError{Category: ErrorCategoryConfiguration, Message: "invalid configuration"}
)

// RiskError represents a categorized error with context
type RiskError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *RiskError) Error() string {
	if e.Component == "" && e.Operation == "" {
		return fmt.Sprintf("[%s] %s", e.Category, e.Message)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *RiskError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target is a RiskError of the same category
func (e *RiskError) Is(target error) bool {
	t, ok := target.(*RiskError)
	if !ok {
		return false
	}
	return t.Category == e.Category
}

// WithContext adds context information to the error
func (e *RiskError) WithContext(key string, value interface{}) *RiskError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewRiskError creates a new categorized risk error
func NewRiskError(category ErrorCategory, component, operation, message string) *RiskError {
	return &RiskError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

func NewInvalidInputError(component, operation, message string) *RiskError {
	return NewRiskError(ErrorCategoryInvalidInput, component, operation, message)
}

func NewDivisionByZeroError(component, operation, message string) *RiskError {
	return NewRiskError(ErrorCategoryDivisionByZero, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *RiskError {
	return NewRiskError(ErrorCategoryConfiguration, component, operation, message)
}

// WrapConfigurationError wraps an existing error (typically validator output) as a configuration error
func WrapConfigurationError(err error, component, operation string) *RiskError {
	if err == nil {
		return nil
	}
	e := NewConfigurationError(component, operation, "invalid risk parameters")
	e.Underlying = err
	return e
}
