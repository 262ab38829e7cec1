// Package push wakes devices so they poll the server channel.
//
// Three Notifier implementations are selected by push.mode:
//
//	mock  log only; the default, for development
//	apns  Apple Push Notification service with the MDM push certificate
//	mqtt  publish a WakeRequest for an external push gateway
//
// An MDM wake signal carries only the device's PushMagic; the device then
// contacts the server channel and collects whatever is queued.
package push
