package models

type FrameType string

const (
	FrameSend     FrameType = "send"      // client -> server send intent
	FrameMarkRead FrameType = "mark_read" // client -> server conversation opened
	FrameMessage  FrameType = "message"   // server -> client push
	FrameAck      FrameType = "ack"       // server -> sender, carries the persisted message
	FrameError    FrameType = "error"     // server -> client
)

// Frame is the websocket wire envelope. Which fields are set depends on Type.
type Frame struct {
	Type        FrameType `json:"type"`
	Receiver    *Ref      `json:"receiver,omitempty"`
	Counterpart *Ref      `json:"counterpart,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Content     string    `json:"content,omitempty"`
	Message     *Message  `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
}
