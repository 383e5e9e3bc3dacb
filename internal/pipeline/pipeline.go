// Package pipeline runs the video analysis pipeline.
package pipeline

import "context"

// Request is a video to process.
type Request struct {
	// Source is the input video path.
	Source string
	// Destination is the output video path, written when Process succeeds.
	Destination string
	// Device is a hint of where to run (cpu, cuda...).
	Device string
	// Model is the analysis model name.
	Model string
}

// Pipeline processes videos. Process blocks until the output is written, calling report
// with the percentage done as it progresses.
type Pipeline interface {
	Process(ctx context.Context, req Request, report func(percentage int)) error
}
