// Package split runs the first encoder projection on a remote party that
// holds the weights, with the inputs encrypted under the client's key.
package split

import (
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	gob.Register(ModelInfo{})
	gob.Register(KeysPayload{})
	gob.Register(EncodePayload{})
	gob.Register(ProjectionPayload{})
}

// MessageType defines message types for the split encoding protocol
type MessageType int

const (
	MsgModelInfo MessageType = iota
	MsgKeys
	MsgEncodeRequest
	MsgEncodeResponse
	MsgDone
	MsgError
)

// Message represents a message in the split encoding protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// ModelInfo is sent by the server on connect.
type ModelInfo struct {
	InDim  int
	OutDim int
	Dims   []int
	RunID  string
}

// KeysPayload carries the CKKS parameters and evaluation keys.
type KeysPayload struct {
	Params  []byte
	EvalKey []byte
}

// EncodePayload carries one serialized ciphertext per input row.
type EncodePayload struct {
	BatchID     int
	Ciphertexts [][]byte
}

// ProjectionPayload carries, per input row, the ciphertexts of every output
// group.
type ProjectionPayload struct {
	BatchID int
	Rows    [][][]byte
}

// Protocol handles split encoding communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	return &Protocol{
		encoder: gob.NewEncoder(w),
		decoder: gob.NewDecoder(r),
	}
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// expect receives the next message and checks its type. A Done message is
// reported as io.EOF and an Error message as a remote error.
func (p *Protocol) expect(want MessageType) (*Message, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgError:
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	case want:
		return msg, nil
	}
	return nil, fmt.Errorf("expected message %d, got %d", want, msg.Type)
}

func (p *Protocol) SendModelInfo(info ModelInfo) error {
	return p.Send(&Message{Type: MsgModelInfo, Payload: info})
}

func (p *Protocol) ReceiveModelInfo() (*ModelInfo, error) {
	msg, err := p.expect(MsgModelInfo)
	if err != nil {
		return nil, err
	}
	info, ok := msg.Payload.(ModelInfo)
	if !ok {
		return nil, fmt.Errorf("invalid model info payload type")
	}
	return &info, nil
}

func (p *Protocol) SendKeys(params, evk []byte) error {
	return p.Send(&Message{Type: MsgKeys, Payload: KeysPayload{Params: params, EvalKey: evk}})
}

func (p *Protocol) ReceiveKeys() (*KeysPayload, error) {
	msg, err := p.expect(MsgKeys)
	if err != nil {
		return nil, err
	}
	keys, ok := msg.Payload.(KeysPayload)
	if !ok {
		return nil, fmt.Errorf("invalid keys payload type")
	}
	return &keys, nil
}

// SendEncode sends the encrypted rows of one batch.
func (p *Protocol) SendEncode(batchID int, cts [][]byte) error {
	return p.Send(&Message{
		Type:    MsgEncodeRequest,
		Payload: EncodePayload{BatchID: batchID, Ciphertexts: cts},
	})
}

// ReceiveEncode returns io.EOF once the client is done.
func (p *Protocol) ReceiveEncode() (*EncodePayload, error) {
	msg, err := p.expect(MsgEncodeRequest)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(EncodePayload)
	if !ok {
		return nil, fmt.Errorf("invalid encode payload type")
	}
	return &payload, nil
}

func (p *Protocol) SendProjection(batchID int, rows [][][]byte) error {
	return p.Send(&Message{
		Type:    MsgEncodeResponse,
		Payload: ProjectionPayload{BatchID: batchID, Rows: rows},
	})
}

func (p *Protocol) ReceiveProjection() (*ProjectionPayload, error) {
	msg, err := p.expect(MsgEncodeResponse)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(ProjectionPayload)
	if !ok {
		return nil, fmt.Errorf("invalid projection payload type")
	}
	return &payload, nil
}
