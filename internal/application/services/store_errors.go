package services

import (
	"errors"

	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// storeError keeps typed errors from the store and wraps anything else as a
// STORE error.
func storeError(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewStoreError(message, err)
}
