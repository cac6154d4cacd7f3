package timeline

import (
	"fmt"
	"strings"
	"time"

	"chatsync/internal/models"

	"github.com/google/uuid"
)

const tempIDSuffixLen = 7

// NewTempID returns a temporary message id of the form temp-<unix millis>-<suffix>.
func NewTempID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:tempIDSuffixLen]
	return fmt.Sprintf("%s%d-%s", models.TempIDPrefix, now.UnixMilli(), suffix)
}
