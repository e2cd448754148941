package wsrouter

import "context"

type ctxKey int

const (
	messageTypeKey ctxKey = iota
	messageIdKey
)

func GetMessageTypeFromCtx(ctx context.Context) string {
	messageType, ok := ctx.Value(messageTypeKey).(string)
	if !ok {
		return ""
	}

	return messageType
}

func GetMessageIdFromCtx(ctx context.Context) string {
	messageId, ok := ctx.Value(messageIdKey).(string)
	if !ok {
		return ""
	}

	return messageId
}
