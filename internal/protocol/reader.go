// Unsolicited-message reader. One instance runs per active session and is
// the sole consumer of inbound bytes once the handshake has completed.
package protocol

import (
	"time"
)

// readLoop continuously decodes inbound packets. Log messages go to the
// pending queue; exec responses are routed to the caller awaiting them under
// the execution lock. Any other tag, or an exec response with no caller in
// flight, means the client and server no longer agree on the stream position
// and the session is torn down. The loop exits when the socket closes, either
// through a deliberate disconnect or a fatal I/O error.
func (c *Client) readLoop(sess *session) {
	c.logger.Debug("Reader task started", "addr", c.Endpoint())
	for {
		// The wait for the next packet is unbounded; only body reads are
		// deadline-bounded once a tag has arrived.
		if err := sess.conn.SetReadDeadline(time.Time{}); err != nil {
			c.readerFailed(sess, wrapIOError("reader setup", err))
			return
		}
		tag, err := ReadPacketType(sess.reader)
		if err != nil {
			c.readerFailed(sess, wrapIOError("packet read", err))
			return
		}
		if err := sess.conn.SetReadDeadline(time.Now().Add(responseTimeout)); err != nil {
			c.readerFailed(sess, wrapIOError("reader setup", err))
			return
		}

		switch tag {
		case PacketLogMessage:
			msg, err := DecodeLogMessage(sess.reader)
			if err != nil {
				c.readerFailed(sess, err)
				return
			}
			c.emitLogLine("Log: " + msg.Text)

		case PacketRemoteExec:
			resp, err := DecodeExecResponse(sess.reader)
			if err != nil {
				c.readerFailed(sess, err)
				return
			}
			if !sess.deliver(execResult{resp: resp}) {
				c.readerFailed(sess, &ProtocolDesyncError{Tag: tag})
				return
			}

		default:
			// A handshake ack outside of connect, or an unknown tag.
			c.readerFailed(sess, &ProtocolDesyncError{Tag: tag})
			return
		}
	}
}

// readerFailed handles a fatal reader error: it records the failure, wakes
// any in-flight exec call, and disconnects. A session that was already torn
// down deliberately exits silently instead.
func (c *Client) readerFailed(sess *session, err error) {
	if sess.closed() {
		c.logger.Debug("Reader task stopped", "addr", c.Endpoint())
		return
	}
	c.logger.Warn("Reader task failed", "addr", c.Endpoint(), "error", err)
	c.setLastErr(err)
	sess.deliver(execResult{err: err})
	c.emitLogLine("Connection lost")
	c.Disconnect()
}
