package chat

import "time"

// Security/performance limits.
const (
	// Max bytes per websocket frame read (hard limit).
	// Must cover a full chat_send: maxImagesPerMessage images of
	// maxImageBytes each, base64-encoded (4/3 overhead), plus envelope.
	maxFrameBytes = 12 << 20 // 12 MiB

	// Max message text length (runes).
	maxMessageChars = 4000

	// Max inline images per chat message.
	maxImagesPerMessage = 4

	// Max decoded bytes per inline image.
	maxImageBytes = 2 << 20 // 2 MiB
)

const (
	// Heartbeat defaults (can be overridden by env in ws_gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)
