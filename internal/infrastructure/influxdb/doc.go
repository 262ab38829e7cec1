// Package influxdb records MDM activity as time series.
//
// It wraps influxdb-client-go v2 with non-blocking batched writes. Four
// measurements are written:
//
//	mdm_command   command transitions, tagged by command_type and status
//	mdm_checkin   check-in messages, tagged by message_type
//	mdm_push      wake request outcomes, tagged by push mode
//	mdm_devices   device counts per enrolment status
//
// Recording is best effort. Nothing on the device protocol path waits for
// InfluxDB, and write failures only reach the SetOnError callback.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // carry on without it
//	}
//	defer client.Close()
package influxdb
