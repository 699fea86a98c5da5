// Package viz renders simulation runs in the terminal and as images.
//
//   - [Summary]: styled metric table for a finished run
//   - [Chart]: asciigraph line chart of sample fields
//   - [SavePNG]: gonum/plot chart written to disk
//   - [Model]: Bubble Tea view that follows a walk step by step
//
// # Key Bindings
//
//	Space - Pause/Resume walk
//	+/-   - More/fewer steps per frame
//	Tab   - Cycle charted field
//	T     - Cycle color themes
//	Q     - Quit (cancels the walk)
package viz
