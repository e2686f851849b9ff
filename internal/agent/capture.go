package agent

import "context"

// FaceCounter reports how many faces are in the current camera frame.
type FaceCounter interface {
	CountFaces(ctx context.Context) (int, error)
}

// AudioMeter reports the instantaneous microphone energy level.
type AudioMeter interface {
	Level(ctx context.Context) (float64, error)
}

// FrameCapturer encodes the current camera frame for evidence.
type FrameCapturer interface {
	CaptureFrame(ctx context.Context) (string, error)
}

// Capture is an acquired camera and microphone pair. Close releases both.
type Capture interface {
	FaceCounter
	AudioMeter
	FrameCapturer
	Close() error
}

// CaptureOpener acquires the devices for one session.
type CaptureOpener func(ctx context.Context) (Capture, error)
