package roles

import "context"

type detectionContextKey struct{}

// WithDetection stores the detection snapshot in the context so downstream
// checks within the same evaluation pass observe a single consistent view.
func WithDetection(ctx context.Context, detection Detection) context.Context {
	return context.WithValue(ctx, detectionContextKey{}, detection)
}

// DetectionFromContext retrieves the detection snapshot from the context.
func DetectionFromContext(ctx context.Context) (Detection, bool) {
	detection, ok := ctx.Value(detectionContextKey{}).(Detection)
	return detection, ok
}
