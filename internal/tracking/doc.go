// Package tracking defines the capability interfaces a spatial tracking
// device and its tools expose to the rest of the system.
//
// Backends (a simulator, a serial pose stream, test fakes) implement Device
// and run their own acquisition goroutine. InternalTool is the shared,
// mutex-guarded tool implementation those backends write into; readers take
// instantaneous snapshot reads and never block on acquisition.
package tracking
