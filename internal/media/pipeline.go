package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// Pipeline recompresses images and stores every attachment.
type Pipeline struct {
	Transcoder Transcoder
	Store      Store
	// MaxBytes rejects larger downloads before decoding; 0 means no cap.
	MaxBytes int64
}

// ErrTooLarge is returned for attachments above Pipeline.MaxBytes and for
// images whose dimensions exceed Transcoder.MaxPixels.
var ErrTooLarge = errors.New("attachment too large")

// Persist prepares and saves one attachment of the given kind ("image" or
// "document") and returns its message metadata.
func (p *Pipeline) Persist(ctx context.Context, kind string, data []byte, contentType, filename string) (domain.Attachment, error) {
	if len(data) == 0 {
		return domain.Attachment{}, fmt.Errorf("empty %s", kind)
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return domain.Attachment{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	if p.Store == nil {
		return domain.Attachment{}, fmt.Errorf("no media store configured")
	}

	if kind == "image" {
		out, err := p.Transcoder.JPEG(data)
		if err != nil {
			return domain.Attachment{}, err
		}
		data, contentType = out, "image/jpeg"
		if filename != "" {
			filename = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jpg"
		}
	}

	url, err := p.Store.Save(ctx, data, contentType, filename)
	if err != nil {
		return domain.Attachment{}, err
	}
	return domain.Attachment{Type: kind, URL: url, Filename: filename, Mime: contentType}, nil
}
