package config

// Tracking tool types.
const (
	TrackingExternal = "external"
	TrackingMingle   = "mingle"
)

// TrackingTool links commit messages to an issue tracker.
type TrackingTool interface {
	Validatable
	ToolType() string
}

// ExternalTracker turns commit message matches into links.
type ExternalTracker struct {
	errorHolder
	Link  string
	Regex string
}

func (*ExternalTracker) ToolType() string { return TrackingExternal }

// MingleConfig points at a Mingle project.
type MingleConfig struct {
	errorHolder
	BaseURL               string
	ProjectIdentifier     string
	MQLGroupingConditions string
}

func (*MingleConfig) ToolType() string { return TrackingMingle }
