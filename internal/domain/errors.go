package domain

import "errors"

var (
	ErrSettingsNotFound = errors.New("device settings not found")
	ErrQuotaNotFound    = errors.New("quota state not found")
	ErrNoPreservedFlow  = errors.New("no preserved flow snapshot")
)
