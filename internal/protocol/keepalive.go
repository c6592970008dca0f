// Keep-alive task. One instance runs per active session and prevents the
// remote server from timing out an idle connection.
package protocol

import (
	"time"
)

// keepAliveInterval is the gap between heartbeat packets.
const keepAliveInterval = 2 * time.Second

// keepAliveLoop sends a heartbeat packet every interval until the session's
// done channel closes. A failed or timed-out write records the error, emits a
// "Connection lost" line for the window, and disconnects, which also stops
// the reader task.
func (c *Client) keepAliveLoop(sess *session) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.logger.Debug("Keep-alive task started", "addr", c.Endpoint(), "interval", keepAliveInterval)
	for {
		select {
		case <-sess.done:
			c.logger.Debug("Keep-alive task stopped", "addr", c.Endpoint())
			return

		case <-ticker.C:
			if err := sess.writePacket(EncodeKeepAlive(), writeTimeout); err != nil {
				if sess.closed() {
					return
				}
				werr := wrapIOError("keep-alive send", err)
				c.logger.Warn("Unable to send keep-alive packet", "addr", c.Endpoint(), "error", err)
				c.setLastErr(werr)
				c.emitLogLine("Connection lost")
				c.Disconnect()
				return
			}
		}
	}
}
