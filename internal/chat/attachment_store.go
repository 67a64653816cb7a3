package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// PublicSegment is the URL path segment under which stored files are served.
const PublicSegment = "uploads"

const maxStoredBaseLen = 40

// AttachmentStore writes chat attachments below a content root on disk.
type AttachmentStore struct {
	root    string
	baseURL string
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewAttachmentStore stores files under root and builds URLs from baseURL.
func NewAttachmentStore(root, baseURL string, clock clockwork.Clock, logger *zap.Logger) *AttachmentStore {
	return &AttachmentStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		clock:   clock,
		logger:  logger,
	}
}

// Save writes one attachment for a ticket and verifies it landed on disk.
func (s *AttachmentStore) Save(ctx context.Context, ticketID string, in IncomingAttachment) (domain.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attachment{}, apperrors.NewStorageError(err)
	}

	storedName, err := s.storedName(in)
	if err != nil {
		return domain.Attachment{}, apperrors.NewStorageError(err)
	}
	rel := path.Join("tickets", sanitizeSegment(ticketID), storedName)
	full := s.diskPath(rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return domain.Attachment{}, apperrors.NewStorageError(err)
	}
	if err := writeExclusive(full, in.Data); err != nil {
		return domain.Attachment{}, apperrors.NewStorageError(err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return domain.Attachment{}, apperrors.NewStorageError(err)
	}
	if info.Size() != int64(len(in.Data)) {
		_ = os.Remove(full)
		return domain.Attachment{}, apperrors.NewStorageError(
			fmt.Errorf("short write: %d of %d bytes", info.Size(), len(in.Data)))
	}

	contentPath := path.Join(PublicSegment, rel)
	return domain.Attachment{
		StoredName:   storedName,
		OriginalName: in.Name,
		MimeType:     in.MimeType,
		SizeBytes:    int64(len(in.Data)),
		ContentPath:  contentPath,
		UploadedAt:   s.clock.Now().UTC(),
		URL:          s.URLFor(contentPath),
	}, nil
}

// Remove deletes a previously saved attachment. Missing files are ignored.
func (s *AttachmentStore) Remove(a domain.Attachment) {
	rel := strings.TrimPrefix(normalizePath(a.ContentPath), PublicSegment+"/")
	if err := os.Remove(s.diskPath(rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove attachment", zap.String("path", a.ContentPath), zap.Error(err))
	}
}

// URLFor builds the public URL of a stored path from the uploads segment
// onwards, so moving the content root does not change URL shape.
func (s *AttachmentStore) URLFor(contentPath string) string {
	p := normalizePath(contentPath)
	marker := PublicSegment + "/"
	if idx := strings.Index(p, marker); idx >= 0 {
		p = p[idx:]
	} else {
		p = marker + strings.TrimLeft(p, "/")
	}
	return s.baseURL + "/" + p
}

// WithURLs returns a copy of attachments with URLs computed fresh.
func (s *AttachmentStore) WithURLs(attachments []domain.Attachment) []domain.Attachment {
	out := make([]domain.Attachment, len(attachments))
	for i, a := range attachments {
		a.ContentPath = normalizePath(a.ContentPath)
		a.URL = s.URLFor(a.ContentPath)
		out[i] = a
	}
	return out
}

func (s *AttachmentStore) diskPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *AttachmentStore) storedName(in IncomingAttachment) (string, error) {
	token := make([]byte, 8)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}

	original := filepath.Base(normalizePath(in.Name))
	ext := strings.ToLower(path.Ext(original))
	base := strings.TrimSuffix(original, path.Ext(original))
	if !cleanExtension(ext) {
		ext = extensionFor(in)
	}

	base = sanitizeSegment(base)
	if len(base) > maxStoredBaseLen {
		base = base[:maxStoredBaseLen]
	}
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d-%s-%s%s", s.clock.Now().UnixMilli(), hex.EncodeToString(token), base, ext), nil
}

// extensionFor derives an extension from the declared type, falling back
// to sniffing the content.
func extensionFor(in IncomingAttachment) string {
	if m := mimetype.Lookup(in.MimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return mimetype.Detect(in.Data).Extension()
}

func cleanExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 {
		return false
	}
	return sanitizeSegment(ext[1:]) == ext[1:]
}

func writeExclusive(full string, data []byte) error {
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return err
	}
	return f.Close()
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// sanitizeSegment keeps letters, digits, dot, dash and underscore.
func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
