// Package admin implements the administrative actions on enrolled
// devices: messages, Lost Mode, information queries, lock, erase and
// unenrolment.
//
// Every action follows the same path. The device must exist (and, except
// for disabling Lost Mode, be enrolled), one command is queued, then a
// wake signal is sent. Push failures are reported in the Result; the
// command stays queued and is delivered on the device's next poll.
package admin
