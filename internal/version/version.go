package version

const (
	AppName    = "Melodash"
	AppVersion = "0.3.0"
)
