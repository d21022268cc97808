package models

import "time"

type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelChat  Channel = "chat"
)

// Utterance is one caller input. It is never persisted beyond logs.
type Utterance struct {
	Text       string    `json:"text"`
	Channel    Channel   `json:"channel,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func NewUtterance(text string, channel Channel, at time.Time) Utterance {
	return Utterance{Text: text, Channel: channel, ReceivedAt: at}
}

// Exchange is one (utterance, reply) pair kept in session history.
type Exchange struct {
	Utterance string    `json:"utterance"`
	Reply     string    `json:"reply"`
	Source    string    `json:"source"`
	Intent    Intent    `json:"intent"`
	At        time.Time `json:"at"`
}
