package harness

// StepOutput is the trace entry of one executed step.
type StepOutput struct {
	Step  int    `json:"step"`
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`

	// Codes holds integer outputs (floating-gate codes of to_hw).
	Codes map[string]int `json:"codes,omitempty"`

	// Values holds real outputs (to_bio parameters, adc voltages).
	Values map[string]float64 `json:"values,omitempty"`
}

// value looks an output up in either map.
func (o StepOutput) value(name string) (float64, bool) {
	if v, ok := o.Codes[name]; ok {
		return float64(v), true
	}
	v, ok := o.Values[name]
	return v, ok
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation matched.
	Pass bool `json:"pass"`

	// Trace contains the outputs of all steps in order.
	Trace []StepOutput `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepOutput{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
