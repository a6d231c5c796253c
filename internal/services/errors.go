package services

import "errors"

var (
	ErrLicenseNotFound    = errors.New("license not found")
	ErrDeviceNotFound     = errors.New("device not found for this license")
	ErrKeyExists          = errors.New("license key already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)
