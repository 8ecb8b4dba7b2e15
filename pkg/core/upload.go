package core

// UploadMetadata describes an exported snapshot file offered to an
// annotation-sharing server.
type UploadMetadata struct {
	SceneName     string
	SourceApp     string
	WaypointCount int
	GroupCount    int
	Tag           string
}
