package schema

// Version constants for the persisted format and the tool.
const (
	// FormatVersion is the version of the dataset envelope.
	FormatVersion = 1

	// ToolVersion is the calibtic version.
	ToolVersion = "0.1.0"
)

// Schema versions of the persisted entities. Bump when the encoded field
// set of an entity changes and teach its decoder to read the old layout.
const (
	VersionTransformation     = 1
	VersionCalibration        = 1
	VersionMetaData           = 1
	VersionNeuronCalibration  = 1
	VersionSharedCalibration  = 1
	VersionSynapseCalibration = 1
	VersionSynapseRow         = 1
	VersionADCCalibration     = 1
	VersionQuadraticADC       = 1
	VersionCollection         = 1
	VersionLineCalibration    = 1

	// VersionHICANNCollection 0 had neuron, block and synapse rows only,
	// 1 added the L1 crossbar, 2 added chain lengths and synapse switches.
	VersionHICANNCollection = 2
)
