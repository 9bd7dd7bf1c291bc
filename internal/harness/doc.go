// Package harness runs calibration regression scenarios.
//
// A scenario feeds cells through the default calibrations and checks the
// produced values. Steps run in order and each records its output in the
// trace, which can be compared against a golden snapshot.
//
// # Scenario Format
//
//	name: reference_cell
//	description: "AdEx reference cell maps to the known codes"
//	cells: cells.cue
//	speedup: 10000
//	steps:
//	  - to_hw: {cell: pyramidal}
//	    expect: {I_gl: 189, E_l: 341}
//	  - to_bio:
//	      cm: 0.216456
//	      dac: {I_gl: 511, E_l: 511}
//	    expect: {tau_m: 6.49585}
//	    tolerance: 0.002
//	  - adc: {calibration: default, channel: 0, raw: [0, 4095]}
//	    expect: {"0": 1.8, "1": 0}
//	    tolerance: 1e-6
//
// cells is resolved relative to the scenario file. to_hw emits the
// floating-gate codes by register name, to_bio the biological parameters
// by cell file name and adc the voltages by sample index. expect is a
// subset match.
//
// # Deterministic Testing
//
// Scenarios run with testutil.DeterministicClock and the trace is
// serialized as canonical JSON, so snapshots are byte-identical across
// runs.
package harness
