// Package device owns the record of every device that has talked to the
// MDM server.
//
// A device is keyed by the UDID it reports. Records are built up from
// independent partial messages: Authenticate supplies identity attributes,
// TokenUpdate supplies push credentials, and a bare poll supplies nothing
// but proof of life. Registry.Upsert merges each message into the stored
// record without clearing fields the message did not carry:
//
//	reg.Upsert(ctx, udid, device.Fields{PushToken: device.String("ab12")})
//	reg.Upsert(ctx, udid, device.Fields{DeviceName: device.String("Kiosk 3")})
//	// record now has both PushToken and DeviceName
//
// # Lifecycle
//
// Any upsert leaves the device enrolled. Only CheckOut from the device or
// an administrator's unenroll moves it to unenrolled, via SetStatus.
//
// # Concurrency
//
// There is no cache. Each operation is a single SQLite transaction, and the
// connection is opened with immediate transaction locking, so the merge is
// atomic with respect to other writers.
package device
