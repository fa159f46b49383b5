package events

import "github.com/tidwall/gjson"

// FromRaw translates one raw payload drained from a tab into an Event.
// Payloads flagged system become SystemEvents carrying only their content.
// Missing message fields decode to empty strings; the channel name falls
// back to the configured directory and then to "unknown-channel".
func FromRaw(accountID string, raw []byte, channelNames map[string]string) Event {
	payload := gjson.ParseBytes(raw)
	if payload.Get("system").Bool() {
		return SystemEvent{
			AccountID: accountID,
			Content:   payload.Get("content").String(),
		}
	}

	channelID := payload.Get("channel_id").String()
	channelName := payload.Get("channel_name").String()
	if channelName == "" && channelID != "" {
		channelName = channelNames[channelID]
	}
	if channelName == "" {
		channelName = "unknown-channel"
	}

	return MessageEvent{
		AccountID:   accountID,
		MessageID:   payload.Get("id").String(),
		ChannelID:   channelID,
		ChannelName: channelName,
		GuildID:     payload.Get("guild_id").String(),
		AuthorName:  payload.Get("author").String(),
		AuthorID:    payload.Get("author_id").String(),
		Content:     payload.Get("content").String(),
		Timestamp:   payload.Get("timestamp").String(),
		Source:      payload.Get("source").String(),
	}
}
