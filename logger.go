package slackify

import (
	"github.com/sirupsen/logrus"
)

// Logger 全局日志记录器
var Logger logrus.FieldLogger = logrus.StandardLogger().WithField("component", "slackify")

// SetLogger 设置自定义日志记录器
func SetLogger(logger logrus.FieldLogger) {
	Logger = logger
}
