package source

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is returned when a lifecycle call is made with no
	// device assigned.
	ErrPrecondition = errors.New("no tracking device assigned")

	// ErrHardware is the sentinel wrapped by every HardwareError.
	ErrHardware = errors.New("tracking device failure")

	// ErrStructuralMismatch is the sentinel wrapped by every
	// StructuralMismatchError.
	ErrStructuralMismatch = errors.New("tool count does not match outputs")

	// ErrOutputIndex is returned for an out-of-range output index.
	ErrOutputIndex = errors.New("output index out of range")
)

// HardwareError reports that the device refused a lifecycle transition.
type HardwareError struct {
	Op         string
	Diagnostic string
}

func (e *HardwareError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s: %s", e.Op, ErrHardware)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrHardware, e.Diagnostic)
}

func (e *HardwareError) Unwrap() error { return ErrHardware }

// StructuralMismatchError reports that tools were added to or removed from
// the device without the outputs being rebuilt. Recover by calling
// AssignDevice or UpdateOutputInformation.
type StructuralMismatchError struct {
	Tools   int
	Outputs int
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("%s: device has %d tools, source has %d outputs; call UpdateOutputInformation",
		ErrStructuralMismatch, e.Tools, e.Outputs)
}

func (e *StructuralMismatchError) Unwrap() error { return ErrStructuralMismatch }
