package consts

const (
	MimePrefixImage = "image"
)

const (
	MaxUserListSize = 200
	SearchLimit     = 50
)

const (
	ThumbnailWidth   = 320
	MaxUploadSize    = 10 << 20
	UploadPathPrefix = "im/images/"
)
