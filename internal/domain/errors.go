package domain

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrDispatch   = errors.New("dispatch failed")
	ErrPoll       = errors.New("status check failed")
	ErrItem       = errors.New("item conversion failed")
	ErrBusy       = errors.New("a conversion is already in progress")
	ErrCancelled  = errors.New("cancelled")
	ErrNotFound   = errors.New("not found")
)
