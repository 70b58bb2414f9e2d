package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// DevSender writes <stamp>_<tag>.html and a .json envelope per message.
type DevSender struct {
	dir string
	now func() time.Time
}

func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

func (d *DevSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	now := d.now().UTC()
	label := msg.Tag
	if label == "" {
		label = msg.Subject
	}
	base := filepath.Join(d.dir, now.Format("20060102T150405.000000")+"_"+fileLabel(label))

	envelope, err := json.MarshalIndent(struct {
		Message
		SentAt time.Time `json:"sent_at"`
	}{msg, now}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if err := os.WriteFile(base+".html", []byte(msg.HTML), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if err := os.WriteFile(base+".json", envelope, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}

func fileLabel(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'):
			return unicode.ToLower(r)
		}
		return -1
	}, s)
	if len(s) > 64 {
		s = s[:64]
	}
	if s == "" {
		return "email"
	}
	return s
}
