package flow

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
)

// SendText appends a user message and asks the agent for a reply. Blank text
// is ignored.
func (s *Session) SendText(text string) error {
	if s.closed {
		return ErrClosed
	}
	if s.screen != ScreenChat {
		return ErrWrongScreen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.appendMessage(Message{Text: text, Sender: SenderUser, Type: MessageText})
	if !s.agent.RespondText(text, s.cfg.ResponseDelay.Min, s.cfg.ResponseDelay.Max) {
		s.logger.Debug("reply already pending")
	}
	return nil
}

// SendAttachment validates an image and appends it once its content has been
// read into a data URI.
func (s *Session) SendAttachment(a Attachment) error {
	if s.closed {
		return ErrClosed
	}
	if s.screen != ScreenChat {
		return ErrWrongScreen
	}
	if !s.cfg.AllowsFileType(a.MIMEType) {
		s.metrics.ObserveAttachmentRejected("type")
		s.surface.Notify(Notice{Kind: NoticeError, Text: "Please select a valid image file (JPEG, PNG, GIF, WebP)"})
		return fmt.Errorf("%w: %s", ErrUnsupportedType, a.MIMEType)
	}
	if a.Size > s.cfg.MaxFileSize {
		s.rejectTooLarge()
		return ErrFileTooLarge
	}
	if a.Content == nil {
		return fmt.Errorf("flow: attachment content required")
	}

	limit := s.cfg.MaxFileSize
	mimeType := strings.ToLower(a.MIMEType)
	go func() {
		data, err := io.ReadAll(io.LimitReader(a.Content, limit+1))
		s.sched.Post(func() {
			if s.closed {
				return
			}
			switch {
			case err != nil:
				s.logger.Warn("attachment read failed", "error", err, "file_name", a.Name)
				s.surface.Notify(Notice{Kind: NoticeError, Text: "We couldn't read that file. Please try again."})
			case int64(len(data)) > limit:
				s.rejectTooLarge()
			default:
				s.appendImage(a.Name, dataURI(mimeType, data))
			}
		})
	}()
	return nil
}

func (s *Session) rejectTooLarge() {
	s.metrics.ObserveAttachmentRejected("size")
	s.surface.Notify(Notice{
		Kind: NoticeError,
		Text: fmt.Sprintf("File size must be less than %dMB", s.cfg.MaxFileSize/(1024*1024)),
	})
}

func (s *Session) appendImage(name, uri string) {
	if s.screen != ScreenChat {
		return
	}
	s.appendMessage(Message{Sender: SenderUser, Type: MessageImage, ImageURL: uri, ImageName: name})
	if !s.agent.RespondImage(s.cfg.ResponseDelay.Min, s.cfg.ResponseDelay.Max) {
		s.logger.Debug("reply already pending")
	}
}

// Close asks the host to close the widget, or hides a standalone document.
func (s *Session) Close() {
	if s.host == nil {
		s.surface.Hide()
		return
	}
	if err := s.host.Post(bridge.Close{}); err != nil {
		s.logger.Warn("close request not delivered", "error", err)
	}
	s.metrics.ObserveBridge("outbound", bridge.ActionClose, true)
}

// HandleHostMessage applies a message pushed by the embedding page.
func (s *Session) HandleHostMessage(msg bridge.Message) error {
	switch m := msg.(type) {
	case bridge.SendMessage:
		s.metrics.ObserveBridge("inbound", m.Action(), true)
		return s.SendText(m.Text)
	case nil:
		return bridge.ErrMalformed
	default:
		s.metrics.ObserveBridge("inbound", m.Action(), false)
		return fmt.Errorf("%w: %s is not accepted by the frame", bridge.ErrUnknownAction, m.Action())
	}
}

func (s *Session) appendMessage(msg Message) {
	s.msgSeq++
	now := s.sched.Now()
	msg.ID = fmt.Sprintf("msg_%d_%d", s.msgSeq, now.UnixMilli())
	msg.Timestamp = now
	s.messages = append(s.messages, msg)
	s.metrics.ObserveMessage(string(msg.Sender), string(msg.Type))
	s.surface.AppendMessage(msg)
}

func dataURI(mimeType string, data []byte) string {
	var buf bytes.Buffer
	buf.WriteString("data:")
	buf.WriteString(mimeType)
	buf.WriteString(";base64,")
	buf.WriteString(base64.StdEncoding.EncodeToString(data))
	return buf.String()
}
