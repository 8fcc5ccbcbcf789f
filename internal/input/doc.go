// Package input samples the node's button and reports debounced
// transitions.
//
// The [Sampler] polls one pin. When the raw level differs from the last
// stable level it waits out the debounce window and reads again; only if
// the new level still differs is it committed and reported, exactly once.
// A flip that reverts within the window is a glitch and reports nothing.
//
// Reports go to a [Publisher] as "1" (pressed) or "0" (released). With an
// active-low button a read of 0 means pressed.
package input
