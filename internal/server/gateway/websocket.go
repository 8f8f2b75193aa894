package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/neurostore/internal/api"
	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/server/auth"
	"github.com/dmitrijs2005/neurostore/internal/server/services"
	"github.com/dmitrijs2005/neurostore/internal/server/stream"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	closeGrace = time.Second
	// control frame payloads are capped at 125 bytes, two of them the code
	maxCloseText = 120
)

// wsReceiver turns WebSocket frames into upload messages. The literal
// end marker closes the session.
type wsReceiver struct {
	conn *websocket.Conn
}

func (r wsReceiver) Recv() (*stream.UploadMessage, error) {
	_, raw, err := r.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	if string(raw) == common.UploadEndMarker {
		return &stream.UploadMessage{End: true}, nil
	}

	var m api.UploadRequest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: bad chunk frame: %v", common.ErrProtocol, err)
	}
	if m.Header != nil {
		return nil, fmt.Errorf("%w: header sent twice", common.ErrProtocol)
	}
	return &stream.UploadMessage{Index: m.Index, Hash: m.Hash, Data: m.Data, End: m.End}, nil
}

type wsSender struct {
	conn *websocket.Conn
}

func (s wsSender) Send(m *stream.DownloadMessage) error {
	return s.conn.WriteJSON(api.DownloadResponse{Index: m.Index, Data: m.Data, Error: m.Error, Done: m.Done})
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// closeWith sends a close frame carrying err, or a normal closure when err
// is nil.
func (g *Gateway) closeWith(conn *websocket.Conn, err error) {
	code, text := websocket.CloseNormalClosure, ""
	if err != nil {
		body := errorFrom(err)
		_ = conn.WriteJSON(body)
		code, text = websocket.ClosePolicyViolation, body.Error
		text = truncateUTF8(text, maxCloseText)
		if body.Status >= http.StatusInternalServerError {
			code = websocket.CloseInternalServerErr
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(closeGrace))
}

// wsUpload expects a JSON header frame (the planned request, file_id set),
// then one JSON frame per chunk and finally the end marker. The reply is
// the commit result or an error frame.
func (g *Gateway) wsUpload(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx := c.Request.Context()

	var header api.PlanUploadRequest
	if err := conn.ReadJSON(&header); err != nil {
		g.closeWith(conn, fmt.Errorf("%w: bad header frame: %v", common.ErrProtocol, err))
		return
	}

	res, err := g.files.Upload(ctx, auth.IdentityFrom(ctx), services.PlanRequest(header), wsReceiver{conn: conn})
	if err != nil {
		g.closeWith(conn, err)
		return
	}

	if err := conn.WriteJSON(api.UploadResponse{
		FileID:   res.Version.FileID,
		Version:  res.Version.Number,
		Size:     res.Version.Size,
		Received: res.Received,
		Bytes:    res.Bytes,
	}); err != nil {
		g.logger.Warn(ctx, "upload reply failed", "error", err)
		return
	}
	g.closeWith(conn, nil)
}

// wsDownload streams ?file_id= at ?version= (latest when absent). Access is
// checked before the upgrade so refusals are plain HTTP errors.
func (g *Gateway) wsDownload(c *gin.Context) {
	ctx := c.Request.Context()
	identity := auth.IdentityFrom(ctx)

	fileID := c.Query("file_id")
	if fileID == "" {
		g.fail(c, fmt.Errorf("%w: file_id is required", common.ErrInvalidArgument))
		return
	}
	version, err := versionParam(c)
	if err != nil {
		g.fail(c, err)
		return
	}
	v, err := g.files.Descriptors(ctx, identity, fileID, version)
	if err != nil {
		g.fail(c, err)
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	_, err = g.files.Reconstruct(ctx, identity, fileID, v.Number, wsSender{conn: conn})
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return
	}
	g.closeWith(conn, err)
}
