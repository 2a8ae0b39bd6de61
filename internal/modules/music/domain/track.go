package domain

// SourceKind classifies how a track's URI must be turned into audio.
type SourceKind int

const (
	// SourceStandard is a catalog URI (e.g. a video page) whose media
	// stream must be extracted, and for which extraction may be retried.
	SourceStandard SourceKind = iota

	// SourceDirectStream is a direct, typically pre-signed and single-use
	// media URL. It is fetched exactly once and never retried.
	SourceDirectStream
)

// String returns a human-readable name for the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceStandard:
		return "standard"
	case SourceDirectStream:
		return "direct"
	default:
		return "unknown"
	}
}

// Track is a resolved, playable unit of audio. Immutable once created.
type Track struct {
	DisplayName string
	PlayableURI string
	Source      SourceKind
}

// IsValid returns true if the track has the minimum required fields.
func (t *Track) IsValid() bool {
	return t.DisplayName != "" && t.PlayableURI != ""
}
