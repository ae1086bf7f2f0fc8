package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogNotifier(t *testing.T) {
	buf := &bytes.Buffer{}
	n := &LogNotifier{logger: zerolog.New(buf)}

	n.Notify(Notification{Severity: SeveritySuccess, Message: "data fetched"})
	n.Notify(Notification{Severity: SeverityError, Message: "import failed"})

	output := buf.String()
	if !strings.Contains(output, "data fetched") {
		t.Errorf("Expected output to contain success message, got %q", output)
	}
	if !strings.Contains(output, `"level":"error"`) {
		t.Errorf("Expected error severity to log at error level, got %q", output)
	}
}

func TestCapture(t *testing.T) {
	c := &Capture{}

	c.Notify(Notification{Severity: SeverityInfo, Message: "first"})
	c.Notify(Notification{Severity: SeverityError, Message: "second"})

	all := c.All()
	if len(all) != 2 {
		t.Fatalf("Captured = %d notifications, want 2", len(all))
	}
	if all[0].Message != "first" || all[1].Message != "second" {
		t.Errorf("Capture order = %v, want emission order", all)
	}
}
