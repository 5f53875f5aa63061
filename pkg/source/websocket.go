package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/haivivi/gizplay/pkg/buffer"
)

// wsStream receives binary websocket frames into a byte buffer that the
// Media reads from.
type wsStream struct {
	conn *websocket.Conn
	buf  *buffer.Buffer[byte]
	log  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func (o *Opener) openWebSocket(ctx context.Context, uri string, u *url.URL) (*Media, error) {
	f, err := rawFormat(u.Query(), DefaultStreamFormat)
	if err != nil {
		return nil, err
	}
	dialer := o.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, uri, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("source: dial %s: %w (status %d)", uri, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("source: dial %s: %w", uri, err)
	}

	ws := &wsStream{
		conn: conn,
		buf:  buffer.N[byte](f.BytesRate()),
		log:  o.logger().With("uri", uri),
		done: make(chan struct{}),
	}
	go ws.readLoop()

	m := newMedia(uri, f, ws.buf)
	m.closer = ws
	return m, nil
}

func (ws *wsStream) readLoop() {
	defer close(ws.done)
	for {
		mt, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.log.Debug("websocket closed by peer")
				ws.buf.CloseWrite()
				return
			}
			ws.buf.CloseWithError(err)
			return
		}
		if mt != websocket.BinaryMessage {
			ws.log.Debug("ignoring non-binary frame", "type", mt)
			continue
		}
		if _, err := ws.buf.Write(data); err != nil {
			return
		}
	}
}

// Close closes the connection and waits for the read loop.
func (ws *wsStream) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		err = ws.conn.Close()
		ws.buf.CloseWithError(errors.New("source: websocket closed"))
		<-ws.done
	})
	return err
}
