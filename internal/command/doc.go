// Package command builds MDM command documents and owns the per-device
// command queue.
//
// # Building
//
// Each supported command is its own Request type carrying typed
// parameters. Build turns a Request into a Descriptor holding a fresh
// CommandUUID and the XML property list the device will receive:
//
//	desc, err := command.Build(command.EnableLostMode{Message: "Call reception"})
//
// ParseRequest maps the kind names used by the admin API onto those types
// and rejects anything else with ErrUnknownCommandType.
//
// # Queue
//
// Queue.Enqueue persists a command as pending. Queue.Dispatch claims the
// oldest pending command for a device (created_at, then insertion order)
// and marks it sent in the same statement. Queue.RecordResponse maps the
// device's reported Status onto the command:
//
//	Acknowledged        → acknowledged
//	Error               → error
//	CommandFormatError  → format_error
//	anything else       → stored verbatim
//
// A report only applies to a sent command of the reporting device. Reports
// for other devices' commands, unsent ones or final ones are ignored.
//
// Sent commands never expire and are never re-sent.
package command
