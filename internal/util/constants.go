package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 非管理员访问管理端时的跳转地址
const DashboardPath = "/dashboard"

// 文件上传相关常量
const (
	MimeVideo = "video/"
	MimeImage = "image/"

	MaxMediaSize = 200 << 20
)

var (
	AllowedMediaTypes      = []string{MimeImage, MimeVideo}
	AllowedVideoExtensions = []string{".mp4", ".mov", ".webm", ".mkv"}
)
