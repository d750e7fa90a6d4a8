package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID returns the continuity key shared by the extraction and audit
// calls of one pipeline run.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewNumericFileID generates a knowledge-store file id when the caller did
// not supply one.
func NewNumericFileID() string {
	return fmt.Sprintf("%d", uuid.New().ID()%1_000_000_000)
}

const maxNameLen = 50

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)

// ObjectKeyGenerator builds object-store keys for archived audit documents,
// layered by date so the bucket stays browsable.
type ObjectKeyGenerator struct {
	prefix string
}

func NewObjectKeyGenerator(prefix string) *ObjectKeyGenerator {
	return &ObjectKeyGenerator{prefix: prefix}
}

func (g *ObjectKeyGenerator) GenerateKey(fileName string) string {
	now := time.Now()
	uid := uuid.New().String()[:8]
	return fmt.Sprintf("%s/%s/%s_%s", g.prefix, now.Format("2006/01/02"), uid, sanitizeFilename(fileName))
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = regexp.MustCompile(`[_\-.]{2,}`).ReplaceAllString(name, "_")
	name = strings.Trim(name, "_-.")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if name == "" {
		name = "document.txt"
	}
	return name
}
