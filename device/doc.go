// Package device provides high-level drivers for the programmable current
// source and the shunt monitor.
//
// # Overview
//
// The package sits on top of the protocol codec and a transport.ByteTransport:
//   - Exchange sends one command and waits for one shape-checked reply
//   - FixedReferenceSupply selects one of eight calibrated stages
//   - AdjustableReferenceSupply commands an output current directly
//   - ShuntMonitor reads and writes calibration parameters and streams samples
//
// # Basic Usage
//
// Open the current source and select a stage:
//
//	port, err := transport.OpenSerial(transport.SerialConfig{PortName: "/dev/ttyACM0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	supply := device.NewFixedReferenceSupply(port)
//	defer supply.Close()
//
//	ma, err := supply.SetStageConfirmed(ctx, 7, 0.05, 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("stage 7 echoed %.4g mA\n", ma)
//
// The reference mode is chosen once at construction. Requesting a stage from
// an adjustable supply (or a current from a fixed one) is a *ModeError; use
// CheckMode to reject such a request before any I/O happens.
//
// # Measuring
//
// The shunt monitor streams samples continuously once powered:
//
//	monitor := device.NewShuntMonitor(port,
//	    device.WithSampleCallback(func(s protocol.MeasurementSample) {
//	        fmt.Printf("%d %.6f mA\n", s.Timestamp, s.CurrentMA)
//	    }),
//	)
//	stats, _, err := monitor.Measure(ctx, 500*time.Millisecond, 2*time.Second)
//
// Samples that fail their checksum are dropped and counted, never returned.
//
// # Calibration
//
// Calibration parameters are shunt resistances keyed by name:
//
//	params, err := calibration.Parse("shunts.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := monitor.ApplyCalibration(ctx, params, 3); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// The package provides structured error types:
//   - NoResponseError: no valid reply (timeout, unexpected shape, lost link)
//   - ModeError: operation not available in the supply's reference mode
//   - SettingError: a confirmed setting never echoed within tolerance
//   - ConfigMismatchError: a calibration parameter did not read back
//
// Every NoResponseError matches ErrNoResponse. IsDisconnected separates a
// lost device from a transient timeout.
//
// # Concurrency
//
// Drivers are not safe for concurrent use. Each driver owns its transport
// and correlates replies by shape only, so one request must complete before
// the next is sent.
package device
