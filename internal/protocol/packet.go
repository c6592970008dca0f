// Packet codec for the Dread debug protocol. Encoding and decoding are pure
// over byte slices and io.Reader; the session owns all socket deadlines.
//
// Wire shapes (multi-byte integers are little-endian):
//
//	Handshake      client->server  [type=1][interest]
//	Handshake ack  server->client  [type=1][requestNumber]
//	LogMessage     server->client  [type=2][length:4][UTF-8 text]
//	RemoteExec     client->server  [type=3][length:4][Lua source]
//	Exec response  server->client  [type=3][requestNumber][success:1][length:3][payload]
//	KeepAlive      client->server  [type=4]
//
// The exec response length is a 24-bit unsigned integer: three bytes on the
// wire, zero-extended to 32 bits before decoding.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PacketType identifies a packet on the wire.
type PacketType byte

// Packet type tags as defined by the remote server.
const (
	PacketHandshake  PacketType = 1
	PacketLogMessage PacketType = 2
	PacketRemoteExec PacketType = 3
	PacketKeepAlive  PacketType = 4
)

// String returns a human-readable name for logging and diagnostics.
func (t PacketType) String() string {
	switch t {
	case PacketHandshake:
		return "HANDSHAKE"
	case PacketLogMessage:
		return "LOG_MESSAGE"
	case PacketRemoteExec:
		return "REMOTE_LUA_EXEC"
	case PacketKeepAlive:
		return "KEEP_ALIVE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// InterestLogging is the handshake interest byte requesting that the server
// push log messages over the session.
const InterestLogging byte = 1

// MaxPayloadSize caps declared payload lengths (16 MiB) to prevent allocation
// of absurd buffers from a corrupt or hostile length field.
const MaxPayloadSize = 16 << 20

// MaxExecResponseSize is the largest payload representable by the 24-bit
// length field of an exec response.
const MaxExecResponseSize = 1<<24 - 1

// HandshakeAck is the server's reply to a handshake packet.
type HandshakeAck struct {
	RequestNumber byte
}

// LogMessage is an unsolicited log line pushed by the server.
type LogMessage struct {
	Text string
}

// ExecResponse is the server's reply to a RemoteExec request. When Success is
// false the payload carries the server's error text instead of a result.
type ExecResponse struct {
	RequestNumber byte
	Success       bool
	Payload       []byte
}

// EncodeHandshake builds a client handshake packet declaring an interest.
func EncodeHandshake(interest byte) []byte {
	return []byte{byte(PacketHandshake), interest}
}

// EncodeRemoteExec builds a RemoteExec request carrying Lua source.
func EncodeRemoteExec(code []byte) []byte {
	buf := make([]byte, 5+len(code))
	buf[0] = byte(PacketRemoteExec)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(code)))
	copy(buf[5:], code)
	return buf
}

// EncodeKeepAlive builds the one-byte keep-alive packet.
func EncodeKeepAlive() []byte {
	return []byte{byte(PacketKeepAlive)}
}

// EncodeHandshakeAck builds the server-side handshake acknowledgement.
func EncodeHandshakeAck(requestNumber byte) []byte {
	return []byte{byte(PacketHandshake), requestNumber}
}

// EncodeLogMessage builds a server-side log message packet.
func EncodeLogMessage(text string) []byte {
	buf := make([]byte, 5+len(text))
	buf[0] = byte(PacketLogMessage)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(text)))
	copy(buf[5:], text)
	return buf
}

// EncodeExecResponse builds a server-side exec response. The payload must fit
// the 24-bit length field.
func EncodeExecResponse(requestNumber byte, success bool, payload []byte) ([]byte, error) {
	if len(payload) > MaxExecResponseSize {
		return nil, &FramingError{Reason: fmt.Sprintf("exec payload of %d bytes exceeds 24-bit length field", len(payload))}
	}
	buf := make([]byte, 6+len(payload))
	buf[0] = byte(PacketRemoteExec)
	buf[1] = requestNumber
	if success {
		buf[2] = 1
	}
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))
	copy(buf[3:6], length[:3])
	copy(buf[6:], payload)
	return buf, nil
}

// DecodeHandshake decodes a client handshake body and returns the interest
// byte. Used by the server side of the protocol.
func DecodeHandshake(r io.Reader) (byte, error) {
	var body [1]byte
	if err := readFull(r, body[:], "handshake interest"); err != nil {
		return 0, err
	}
	return body[0], nil
}

// DecodeRemoteExec decodes a client RemoteExec request body and returns the
// Lua source. Used by the server side of the protocol.
func DecodeRemoteExec(r io.Reader) ([]byte, error) {
	var header [4]byte
	if err := readFull(r, header[:], "exec request length"); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxPayloadSize {
		return nil, &FramingError{Reason: fmt.Sprintf("exec request length %d exceeds limit", length)}
	}
	code := make([]byte, length)
	if err := readFull(r, code, "exec request source"); err != nil {
		return nil, err
	}
	return code, nil
}

// ReadPacketType reads the one-byte type tag that opens every packet.
func ReadPacketType(r io.Reader) (PacketType, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, err
	}
	return PacketType(tag[0]), nil
}

// DecodeHandshakeAck decodes a handshake acknowledgement body. The caller has
// already consumed the type tag.
func DecodeHandshakeAck(r io.Reader) (HandshakeAck, error) {
	var body [1]byte
	if err := readFull(r, body[:], "handshake ack"); err != nil {
		return HandshakeAck{}, err
	}
	return HandshakeAck{RequestNumber: body[0]}, nil
}

// DecodeLogMessage decodes a log message body: a 4-byte little-endian length
// followed by that many bytes of UTF-8 text.
func DecodeLogMessage(r io.Reader) (LogMessage, error) {
	var header [4]byte
	if err := readFull(r, header[:], "log message length"); err != nil {
		return LogMessage{}, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxPayloadSize {
		return LogMessage{}, &FramingError{Reason: fmt.Sprintf("log message length %d exceeds limit", length)}
	}
	text := make([]byte, length)
	if err := readFull(r, text, "log message text"); err != nil {
		return LogMessage{}, err
	}
	return LogMessage{Text: string(text)}, nil
}

// DecodeExecResponse decodes an exec response body: request number, success
// flag, 3-byte length, and payload.
func DecodeExecResponse(r io.Reader) (ExecResponse, error) {
	var header [5]byte
	if err := readFull(r, header[:], "exec response header"); err != nil {
		return ExecResponse{}, err
	}
	var length [4]byte
	copy(length[:3], header[2:5])
	size := binary.LittleEndian.Uint32(length[:])
	if size > MaxPayloadSize {
		return ExecResponse{}, &FramingError{Reason: fmt.Sprintf("exec response length %d exceeds limit", size)}
	}
	payload := make([]byte, size)
	if err := readFull(r, payload, "exec response payload"); err != nil {
		return ExecResponse{}, err
	}
	return ExecResponse{
		RequestNumber: header[0],
		Success:       header[1] != 0,
		Payload:       payload,
	}, nil
}

// readFull fills buf from r, converting a truncated frame into a FramingError
// while passing through transport-level failures untouched so the session can
// classify them.
func readFull(r io.Reader, buf []byte, what string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return &FramingError{Reason: "short read of " + what, Err: err}
		}
		return err
	}
	return nil
}
