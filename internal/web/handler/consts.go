package handler

const (
	// RootPath is the root path for the route group.
	RootPath = "/"

	// APIPath is the base path for the JSON API.
	APIPath = RootPath + "api"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"
)
