package coordinator

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultUploadPrefix = "uploads/"
	DefaultExtension    = ".pdf"
)

// Event announces a new object in a bucket.
type Event struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (e Event) String() string {
	return e.Bucket + "/" + e.Key
}

// Trigger decides which events start a run.
type Trigger struct {
	Prefix     string
	Extensions []string
}

// DefaultTrigger accepts .pdf objects under uploads/.
func DefaultTrigger() Trigger {
	return Trigger{Prefix: DefaultUploadPrefix, Extensions: []string{DefaultExtension}}
}

// Matches reports whether ev names an object under the upload prefix with an
// allowed extension. Extensions compare case-insensitively.
func (t Trigger) Matches(ev Event) bool {
	if ev.Bucket == "" || ev.Key == "" {
		return false
	}
	if !strings.HasPrefix(ev.Key, t.Prefix) || len(ev.Key) == len(t.Prefix) {
		return false
	}
	if len(t.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(ev.Key))
	for _, allowed := range t.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

var nameReplacer = strings.NewReplacer("/", "-", ".", "-")

// ExecutionName returns a unique run name for key, of the form
// pdf-processing-{key with / and . replaced by -}-{8 hex digits}.
func ExecutionName(key string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("pdf-processing-%s-%s", nameReplacer.Replace(key), suffix)
}
