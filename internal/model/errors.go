package model

import "errors"

var (
	ErrInvalidRange       = errors.New("end time is before start time")
	ErrNoPermission       = errors.New("no permission")
	ErrNotConnected       = errors.New("couple is not connected")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyConnected   = errors.New("member is already connected")
	ErrSelfConnection     = errors.New("cannot connect with yourself")
	ErrBirthdayRegistered = errors.New("birthday is already registered")
	ErrInvalidInput       = errors.New("invalid input")
)
