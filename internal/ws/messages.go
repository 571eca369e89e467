package ws

import (
	"encoding/json"
	"time"
)

type MessageType string

// Inbound message types pushed by the battle/notification channel.
const (
	TypeBattleStart      MessageType = "BATTLE_START"
	TypeQuestionAnswer   MessageType = "QUESTION_ANSWER"
	TypeOpponentProgress MessageType = "OPPONENT_PROGRESS"
	TypeBattleEnd        MessageType = "BATTLE_END"
	TypeMatchFound       MessageType = "MATCH_FOUND"
	TypeInviteReceived   MessageType = "INVITE_RECEIVED"
	TypeHeartbeat        MessageType = "HEARTBEAT"
)

// Outbound message types.
const (
	TypeJoinBattle  MessageType = "JOIN_BATTLE"
	TypeForfeit     MessageType = "FORFEIT"
	TypeChatMessage MessageType = "CHAT_MESSAGE"
)

// Client-side events that never travel over the wire.
const (
	EventMessage      = "message"
	EventParseError   = "parse_error"
	EventMaxReconnect = "max_reconnect"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(msgType MessageType, data interface{}) (Message, error) {
	msg := Message{Type: msgType, Timestamp: time.Now()}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		msg.Data = payload
	}
	return msg, nil
}
