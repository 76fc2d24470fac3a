package coordinator

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigger_Matches(t *testing.T) {
	trigger := DefaultTrigger()
	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"pdf upload", Event{Bucket: "docs", Key: "uploads/report.pdf"}, true},
		{"upper case extension", Event{Bucket: "docs", Key: "uploads/REPORT.PDF"}, true},
		{"nested", Event{Bucket: "docs", Key: "uploads/2024/q1.pdf"}, true},
		{"wrong prefix", Event{Bucket: "docs", Key: "extracted/report.pdf"}, false},
		{"wrong extension", Event{Bucket: "docs", Key: "uploads/report.docx"}, false},
		{"artifact", Event{Bucket: "docs", Key: "uploads/report.json"}, false},
		{"prefix only", Event{Bucket: "docs", Key: "uploads/"}, false},
		{"no bucket", Event{Key: "uploads/report.pdf"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trigger.Matches(tt.ev))
		})
	}
}

func TestTrigger_CustomExtensions(t *testing.T) {
	trigger := Trigger{Prefix: "in/", Extensions: []string{".PDF", ".pdfa"}}
	assert.True(t, trigger.Matches(Event{Bucket: "b", Key: "in/x.pdf"}))
	assert.True(t, trigger.Matches(Event{Bucket: "b", Key: "in/x.pdfa"}))
	assert.False(t, trigger.Matches(Event{Bucket: "b", Key: "uploads/x.pdf"}))
}

func TestExecutionName(t *testing.T) {
	name := ExecutionName("uploads/annual.report.pdf")
	assert.Regexp(t, regexp.MustCompile(`^pdf-processing-uploads-annual-report-pdf-[0-9a-f]{8}$`), name)
	assert.NotEqual(t, name, ExecutionName("uploads/annual.report.pdf"))
}
