package errcode

// 通知消息里的错误码：
// - 0：无错误
// - 4xxx：目标不存在，任务不再重试
// - 5xxx：系统错误，任务按重试策略重跑
const (
	OK = 0

	// UserMissing 目标用户不存在或已被删除。
	UserMissing = 4004

	SystemError = 5000
	// PayloadDeleteFailed 对象存储删除失败，对应的图片记录被保留。
	PayloadDeleteFailed = 5003
)
