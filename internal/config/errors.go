package config

import (
	"errors"

	"github.com/okian/podium/internal/domain/model"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = model.ErrInvalidConfig
	ErrLoadConfig    = errors.New("load config failed")
)
