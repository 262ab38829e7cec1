package push

import "errors"

// Domain errors for the push package.
var (
	// ErrDeliveryFailed wraps every failure to deliver a wake signal. The
	// command that prompted the push stays queued.
	ErrDeliveryFailed = errors.New("push: delivery failed")

	// ErrMissingCredentials is returned when the device has not yet sent
	// a push token and push magic.
	ErrMissingCredentials = errors.New("push: device has no push credentials")

	// ErrInvalidMode is returned by New for an unknown push mode.
	ErrInvalidMode = errors.New("push: invalid mode")

	// ErrCertificate is returned when the APNs certificate cannot be loaded.
	ErrCertificate = errors.New("push: loading apns certificate")
)
