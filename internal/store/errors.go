package store

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrEmptyAssessment = errors.New("assessment has no scores")
)
