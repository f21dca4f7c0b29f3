package protocol

import "errors"

// Op identifies a service operation inside a request frame.
type Op uint8

const (
	OpActivate   Op = 0x01
	OpDeactivate Op = 0x02
	OpStatus     Op = 0x03
	OpMarkRead   Op = 0x04
)

// String returns a human-readable name for the operation.
func (op Op) String() string {
	switch op {
	case OpActivate:
		return "activate"
	case OpDeactivate:
		return "deactivate"
	case OpStatus:
		return "status"
	case OpMarkRead:
		return "mark_read"
	default:
		return "unknown"
	}
}

// ErrInvalidOp reports an unrecognized operation byte.
var ErrInvalidOp = errors.New("protocol: invalid operation")

// Request is a client-to-server service call. ID correlates the server's
// Response; EntityID is set for toggle operations, ItemIDs for mark-read.
type Request struct {
	ID       uint64
	Op       Op
	EntityID string
	ItemIDs  []string
}

// EncodeRequest encodes a Request to bytes.
func EncodeRequest(req *Request) []byte {
	e := NewEncoder()
	e.WriteUvarint(req.ID)
	e.WriteByte(byte(req.Op))
	e.WriteString(req.EntityID)
	e.WriteStringList(req.ItemIDs)
	return e.Bytes()
}

// DecodeRequest decodes a Request from bytes.
func DecodeRequest(data []byte) (*Request, error) {
	d := NewDecoder(data)

	id, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	opByte, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	op := Op(opByte)
	switch op {
	case OpActivate, OpDeactivate, OpStatus, OpMarkRead:
	default:
		return nil, ErrInvalidOp
	}

	entityID, err := d.ReadString()
	if err != nil {
		return nil, err
	}

	itemIDs, err := d.ReadStringList()
	if err != nil {
		return nil, err
	}

	return &Request{ID: id, Op: op, EntityID: entityID, ItemIDs: itemIDs}, nil
}

// Response is the server's result for one Request. When OK is false, Err
// carries a short failure description and the remaining fields are zero.
type Response struct {
	ID     uint64
	OK     bool
	Err    string
	Active bool
	Count  uint64
	Marked uint64
}

// EncodeResponse encodes a Response to bytes.
func EncodeResponse(resp *Response) []byte {
	e := NewEncoder()
	e.WriteUvarint(resp.ID)
	e.WriteBool(resp.OK)
	e.WriteString(resp.Err)
	e.WriteBool(resp.Active)
	e.WriteUvarint(resp.Count)
	e.WriteUvarint(resp.Marked)
	return e.Bytes()
}

// DecodeResponse decodes a Response from bytes.
func DecodeResponse(data []byte) (*Response, error) {
	d := NewDecoder(data)
	resp := &Response{}

	var err error
	if resp.ID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if resp.OK, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if resp.Err, err = d.ReadString(); err != nil {
		return nil, err
	}
	if resp.Active, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if resp.Count, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if resp.Marked, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Notification is a server-pushed engagement event.
type Notification struct {
	Event    string // engagement action, e.g. "activate" or "deactivate"
	EntityID string
	ActorID  string
	UnixMs   uint64
}

// EncodeNotification encodes a Notification to bytes.
func EncodeNotification(n *Notification) []byte {
	e := NewEncoder()
	e.WriteString(n.Event)
	e.WriteString(n.EntityID)
	e.WriteString(n.ActorID)
	e.WriteUvarint(n.UnixMs)
	return e.Bytes()
}

// DecodeNotification decodes a Notification from bytes.
func DecodeNotification(data []byte) (*Notification, error) {
	d := NewDecoder(data)
	n := &Notification{}

	var err error
	if n.Event, err = d.ReadString(); err != nil {
		return nil, err
	}
	if n.EntityID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if n.ActorID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if n.UnixMs, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return n, nil
}
