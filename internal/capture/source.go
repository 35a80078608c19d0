package capture

// Kind tags the closed set of source variants.
type Kind string

const (
	KindLive     Kind = "live"
	KindRecorded Kind = "recorded"
)

// Source is something a StreamReader can use as its input. The set of
// implementations is closed to LiveSource and RecordedSource; callers switch
// on Kind and use the typed accessors on StreamReader instead of asserting.
type Source interface {
	Kind() Kind
	Name() string
	// IsActive reports connectivity for live sources and playback for
	// recorded ones.
	IsActive() bool
	// CurrentFrame returns the most recent frame the source produced.
	CurrentFrame() (Frame, bool)

	sealed()
}

var (
	_ Source = (*LiveSource)(nil)
	_ Source = (*RecordedSource)(nil)
)
