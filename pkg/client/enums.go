package client

// Orientation of a project or render.
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

var ValidOrientations = []Orientation{OrientationLandscape, OrientationPortrait}

// VoiceoverMode selects between generated speech and an uploaded track.
type VoiceoverMode string

const (
	VoiceoverGenerated VoiceoverMode = "generated"
	VoiceoverUploaded  VoiceoverMode = "uploaded"
)

// MediaType is a stock collection name.
type MediaType string

const (
	MediaVideos MediaType = "videos"
	MediaAudios MediaType = "audios"
	MediaImages MediaType = "images"
)

var ValidMediaTypes = []MediaType{MediaVideos, MediaAudios, MediaImages}

// GradeType controls colour grading of a sequence.
type GradeType string

const (
	GradeSingle   GradeType = "single"
	GradeMultiple GradeType = "multiple"
)

// ProjectStatus is the lifecycle label of a project.
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectOngoing   ProjectStatus = "ongoing"
	ProjectError     ProjectStatus = "error"
	ProjectCompleted ProjectStatus = "completed"
)

var ValidProjectStatuses = []ProjectStatus{ProjectDraft, ProjectOngoing, ProjectError, ProjectCompleted}

// Resolution returns the default output size for an orientation.
func (o Orientation) Resolution() (width, height int) {
	if o == OrientationPortrait {
		return 720, 1280
	}
	return 1280, 720
}
