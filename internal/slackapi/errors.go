package slackapi

import (
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/riverfjs/slackify-go"
)

const notInChannel = "not_in_channel"

// mapError 将 Slack 的 not_in_channel 错误转换为 slackify.ErrNotInChannel，
// 其余错误原样包装。
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se slack.SlackErrorResponse
	if errors.As(err, &se) && se.Err == notInChannel {
		return fmt.Errorf("%s: %w", op, slackify.ErrNotInChannel)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode 返回 Slack API 错误码，非 API 错误返回空字符串
func ErrorCode(err error) string {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err
	}
	return ""
}
