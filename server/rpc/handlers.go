package rpc

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1 << 10,
	WriteBufferSize: 1 << 10,
}

type handler struct {
	server *rpc.Server
}

// wsConn adapts a websocket to the byte stream the JSON-RPC codec expects,
// one JSON value per text message.
type wsConn struct {
	conn *websocket.Conn
	r    io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.r = r
		}

		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error { return c.conn.Close() }

// WebSocket serves JSON-RPC calls for the lifetime of the connection.
func (h *handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("rpc websocket upgrade failed", slog.Any("err", err))
		return
	}

	h.server.ServeCodec(jsonrpc.NewServerCodec(&wsConn{conn: conn}))
}

type rpcRequest struct {
	r  io.Reader
	rw *bytes.Buffer
}

func (r *rpcRequest) Read(p []byte) (int, error)  { return r.r.Read(p) }
func (r *rpcRequest) Write(p []byte) (int, error) { return r.rw.Write(p) }
func (r *rpcRequest) Close() error                { return nil }

// Post serves a single JSON-RPC call per request.
func (h *handler) Post(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req := &rpcRequest{r: r.Body, rw: new(bytes.Buffer)}

	if err := h.server.ServeRequest(jsonrpc.NewServerCodec(req)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	io.Copy(w, req.rw)
}
