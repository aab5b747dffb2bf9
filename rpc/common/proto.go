package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/mvcc"
)

// --------------------------------------------------------------------------
// Message Envelope
// --------------------------------------------------------------------------

// Message is the envelope exchanged between client and server. Every
// request and response is one Message. The Payload carries the encoded
// body of the operation (a query request, a query response, transaction
// arguments or storage statistics), the MsgType says how to decode it.
//
// A response always carries the MsgType of its request, except for
// MsgTError which signals a server-side failure via Err.
type Message struct {
	MsgType MessageType `json:"type"`
	Payload []byte      `json:"payload,omitempty"`
	Err     string      `json:"err,omitempty"`
	Meta    []byte      `json:"meta,omitempty"`
}

// --------------------------------------------------------------------------
// Payload bodies for the transaction operations
// --------------------------------------------------------------------------

// PrewriteBody carries the arguments of a prewrite call.
type PrewriteBody struct {
	Mutations []mvcc.Mutation `json:"mutations"`
	Primary   []byte          `json:"primary"`
	StartTS   uint64          `json:"start_ts"`
}

// CommitBody carries the arguments of a commit call.
type CommitBody struct {
	StartTS  uint64   `json:"start_ts"`
	CommitTS uint64   `json:"commit_ts"`
	Keys     [][]byte `json:"keys"`
}

// RollbackBody carries the arguments of a rollback call.
type RollbackBody struct {
	StartTS uint64   `json:"start_ts"`
	Keys    [][]byte `json:"keys"`
}

// --------------------------------------------------------------------------
// Factory functions for requests
// --------------------------------------------------------------------------

// NewQueryRequest wraps a coprocessor request into a Message.
func NewQueryRequest(req *cop.Request) (*Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query request: %w", err)
	}
	return &Message{MsgType: MsgTQuery, Payload: payload}, nil
}

// NewInfoRequest creates a request for storage statistics.
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTInfo}
}

// NewPrewriteRequest wraps prewrite arguments into a Message.
func NewPrewriteRequest(mutations []mvcc.Mutation, primary []byte, startTS uint64) (*Message, error) {
	payload, err := json.Marshal(PrewriteBody{Mutations: mutations, Primary: primary, StartTS: startTS})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prewrite request: %w", err)
	}
	return &Message{MsgType: MsgTPrewrite, Payload: payload}, nil
}

// NewCommitRequest wraps commit arguments into a Message.
func NewCommitRequest(startTS, commitTS uint64, keys [][]byte) (*Message, error) {
	payload, err := json.Marshal(CommitBody{StartTS: startTS, CommitTS: commitTS, Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to encode commit request: %w", err)
	}
	return &Message{MsgType: MsgTCommit, Payload: payload}, nil
}

// NewRollbackRequest wraps rollback arguments into a Message.
func NewRollbackRequest(startTS uint64, keys [][]byte) (*Message, error) {
	payload, err := json.Marshal(RollbackBody{StartTS: startTS, Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rollback request: %w", err)
	}
	return &Message{MsgType: MsgTRollback, Payload: payload}, nil
}

// --------------------------------------------------------------------------
// Factory functions for responses
// --------------------------------------------------------------------------

// NewQueryResponse wraps a coprocessor response into a Message.
func NewQueryResponse(resp *cop.Response) (*Message, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query response: %w", err)
	}
	return &Message{MsgType: MsgTQuery, Payload: payload}, nil
}

// NewInfoResponse wraps storage statistics into a Message.
func NewInfoResponse(info mvcc.StoreInfo) (*Message, error) {
	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode info response: %w", err)
	}
	return &Message{MsgType: MsgTInfo, Payload: payload}, nil
}

// NewAckResponse creates an empty success response mirroring the
// request's type.
func NewAckResponse(tp MessageType) *Message {
	return &Message{MsgType: tp}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(format string, args ...interface{}) *Message {
	return &Message{MsgType: MsgTError, Err: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Payload decoding
// --------------------------------------------------------------------------

// DecodeQueryRequest decodes the Payload as a coprocessor request.
func (m *Message) DecodeQueryRequest() (*cop.Request, error) {
	req := &cop.Request{}
	if err := json.Unmarshal(m.Payload, req); err != nil {
		return nil, fmt.Errorf("failed to decode query request: %w", err)
	}
	return req, nil
}

// DecodeQueryResponse decodes the Payload as a coprocessor response.
func (m *Message) DecodeQueryResponse() (*cop.Response, error) {
	resp := &cop.Response{}
	if err := json.Unmarshal(m.Payload, resp); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	return resp, nil
}

// DecodeInfo decodes the Payload as storage statistics.
func (m *Message) DecodeInfo() (*mvcc.StoreInfo, error) {
	info := &mvcc.StoreInfo{}
	if err := json.Unmarshal(m.Payload, info); err != nil {
		return nil, fmt.Errorf("failed to decode info response: %w", err)
	}
	return info, nil
}

// DecodePrewrite decodes the Payload as prewrite arguments.
func (m *Message) DecodePrewrite() (*PrewriteBody, error) {
	body := &PrewriteBody{}
	if err := json.Unmarshal(m.Payload, body); err != nil {
		return nil, fmt.Errorf("failed to decode prewrite request: %w", err)
	}
	return body, nil
}

// DecodeCommit decodes the Payload as commit arguments.
func (m *Message) DecodeCommit() (*CommitBody, error) {
	body := &CommitBody{}
	if err := json.Unmarshal(m.Payload, body); err != nil {
		return nil, fmt.Errorf("failed to decode commit request: %w", err)
	}
	return body, nil
}

// DecodeRollback decodes the Payload as rollback arguments.
func (m *Message) DecodeRollback() (*RollbackBody, error) {
	body := &RollbackBody{}
	if err := json.Unmarshal(m.Payload, body); err != nil {
		return nil, fmt.Errorf("failed to decode rollback request: %w", err)
	}
	return body, nil
}

// --------------------------------------------------------------------------
// MessageType
// --------------------------------------------------------------------------

// MessageType identifies the operation a Message carries.
type MessageType uint8

const (
	MsgTUnknown MessageType = iota
	// MsgTError is a server-side failure, details in Message.Err.
	MsgTError
	// MsgTQuery is a coprocessor query (flat or chained-executor shape).
	MsgTQuery
	// MsgTInfo requests storage statistics.
	MsgTInfo
	// MsgTPrewrite stages transactional mutations.
	MsgTPrewrite
	// MsgTCommit makes prewritten mutations visible.
	MsgTCommit
	// MsgTRollback removes prewritten locks.
	MsgTRollback
)

// String returns the human-readable name of the message type.
func (t MessageType) String() string {
	switch t {
	case MsgTError:
		return "Error"
	case MsgTQuery:
		return "Query"
	case MsgTInfo:
		return "Info"
	case MsgTPrewrite:
		return "Prewrite"
	case MsgTCommit:
		return "Commit"
	case MsgTRollback:
		return "Rollback"
	default:
		return "Unknown"
	}
}

// MarshalJSON serializes the MessageType as its string name.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the MessageType from its string name.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "Error":
		*t = MsgTError
	case "Query":
		*t = MsgTQuery
	case "Info":
		*t = MsgTInfo
	case "Prewrite":
		*t = MsgTPrewrite
	case "Commit":
		*t = MsgTCommit
	case "Rollback":
		*t = MsgTRollback
	default:
		*t = MsgTUnknown
	}
	return nil
}
