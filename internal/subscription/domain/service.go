package domain

import (
	"context"
	"errors"
)

type Service interface {
	Overview(ctx context.Context, hospitalID string) (Overview, error)
}

var ErrInvalidHospital = errors.New("invalid_hospital")
