package version

// Version is the current quill release.
const Version = "0.4.0"

// BuildVersion returns the version string for display.
func BuildVersion() string {
	return "quill version " + Version
}

// UserAgent is sent with every API and realtime request.
func UserAgent() string {
	return "quill/" + Version
}
