// Package gpio abstracts the digital pins the node drives and samples.
//
// Two drivers implement [Driver]:
//   - [Chip] talks to the Linux GPIO character device via go-gpiocdev
//   - [Memory] keeps pin state in memory for tests and bench runs without hardware
//
// Levels are raw electrical levels (0 or 1). Polarity such as an
// active-low button is the caller's concern.
package gpio
