package broker

import "strconv"

// Event names carried in the {event, data} envelope on text-channel sockets.
const (
	EventMessageCreate   = "MESSAGE_CREATE"
	EventMessageUpdate   = "MESSAGE_UPDATE"
	EventMessageDelete   = "MESSAGE_DELETE"
	EventVoiceUserJoined = "VOICE_USER_JOINED"
	EventVoiceUserLeft   = "VOICE_USER_LEFT"
)

// Event is the wire envelope for everything the hub pushes over WebSocket.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Identifiers inside realtime payloads are decimal strings. JavaScript
// clients lose precision on int64 JSON numbers.

// MessageDeleted builds the MESSAGE_DELETE payload.
func MessageDeleted(messageID int64) Event {
	return Event{
		Event: EventMessageDelete,
		Data:  map[string]string{"id": strconv.FormatInt(messageID, 10)},
	}
}

// VoiceUserJoined builds the VOICE_USER_JOINED payload.
func VoiceUserJoined(userID, channelID int64) Event {
	return voiceEvent(EventVoiceUserJoined, userID, channelID)
}

// VoiceUserLeft builds the VOICE_USER_LEFT payload.
func VoiceUserLeft(userID, channelID int64) Event {
	return voiceEvent(EventVoiceUserLeft, userID, channelID)
}

func voiceEvent(name string, userID, channelID int64) Event {
	return Event{
		Event: name,
		Data: map[string]string{
			"user_id":    strconv.FormatInt(userID, 10),
			"channel_id": strconv.FormatInt(channelID, 10),
		},
	}
}
