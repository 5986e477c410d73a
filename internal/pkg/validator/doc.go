// Package validator validates request and dependency structs through struct
// tags, returning English field messages keyed by snake_case field name.
package validator
