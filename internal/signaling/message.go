// Package signaling talks to the relay that lets two endpoints exchange
// transfer offers before connecting to each other directly.
package signaling

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer  MessageType = "offer"
	MsgTypeAnswer MessageType = "answer"
)

// Message is one entry of a relay inbox. SDP carries an encoded Offer for
// offer messages; the name is kept for compatibility with existing relays.
type Message struct {
	Type MessageType `json:"type"`
	From string      `json:"from"`
	SDP  string      `json:"sdp"`
}

// Envelope is the body of an offer or answer post.
type Envelope struct {
	To  string `json:"to"`
	SDP string `json:"sdp"`
}

// Presence is the body of a heartbeat.
type Presence struct {
	Busy bool `json:"busy"`
}

// Offers decodes the acted-on subset of msgs: offer messages whose SDP is a
// valid TCP offer. Everything else is skipped.
func Offers(msgs []Message) []Received {
	var out []Received
	for _, m := range msgs {
		if m.Type != MsgTypeOffer {
			continue
		}
		o, err := ParseOffer(m.SDP)
		if err != nil {
			continue
		}
		out = append(out, Received{From: m.From, Offer: o})
	}
	return out
}

// Received pairs an offer with the handle that posted it.
type Received struct {
	From  string
	Offer Offer
}
