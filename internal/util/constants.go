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

// 文件上传相关常量
const (
	MimeVideo       = "video/"
	MimeImage       = "image/"
	MimePDF         = "application/pdf"
	MimeOctetStream = "application/octet-stream"
)

// 管理员在 API 响应里的"无限观看"哨兵值。
// 仅用于序列化边界，内部逻辑使用真正的无上限表示。
const AdminViewLimitSentinel = 999

// 观看进度达到该百分比才算一次完整观看
const CompletedViewThreshold = 99
