package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// recordingMailer captures messages and can fail for chosen recipients.
type recordingMailer struct {
	mu     sync.Mutex
	sent   []Message
	failTo string
}

func (m *recordingMailer) Send(_ context.Context, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(msg.To) > 0 && msg.To[0] == m.failTo {
		return "", errors.New("provider rejected recipient")
	}
	m.sent = append(m.sent, msg)
	return "id-" + msg.To[0], nil
}

func (m *recordingMailer) byRecipient(to string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.sent {
		if msg.To[0] == to {
			return msg, true
		}
	}
	return Message{}, false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCustomer() *model.Customer {
	age := 41
	return &model.Customer{
		ID: "c-1", Name: "Ana <b>Silva</b>", Email: "ana@example.com", Phone: "555-0100",
		Age: &age, LeftEyePower: "-1.25", LensType: "progressive",
	}
}

func TestHandleConsultation_SendsBothEmails(t *testing.T) {
	m := &recordingMailer{}
	h := NewHandler(m, Config{AdminEmail: "shop@example.com"}, quietLogger())

	res := h.HandleConsultation(context.Background(), events.ConsultationCreated{Customer: testCustomer()})
	if res.CustomerEmailID != "id-ana@example.com" || res.AdminEmailID != "id-shop@example.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	cust, _ := m.byRecipient("ana@example.com")
	if cust.Subject != customerSubject || cust.From != DefaultFrom {
		t.Errorf("customer email header = %q from %q", cust.Subject, cust.From)
	}
	admin, _ := m.byRecipient("shop@example.com")
	if !strings.Contains(admin.Subject, "Ana") {
		t.Errorf("admin subject %q should name the customer", admin.Subject)
	}
	if !strings.Contains(admin.HTML, `href="mailto:ana@example.com"`) {
		t.Error("admin email should link the customer address")
	}
	if !strings.Contains(admin.HTML, "<strong>-1.25</strong>") {
		t.Error("admin email should emphasize eye power")
	}
}

func TestHandleConsultation_MissingAdminAddress(t *testing.T) {
	m := &recordingMailer{}
	h := NewHandler(m, Config{}, quietLogger())

	res := h.HandleConsultation(context.Background(), events.ConsultationCreated{Customer: testCustomer()})
	if res.CustomerEmailID == "" || res.AdminEmailID != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(m.sent))
	}
}

func TestHandleConsultation_FailureIsReportedNotFatal(t *testing.T) {
	m := &recordingMailer{failTo: "shop@example.com"}
	h := NewHandler(m, Config{AdminEmail: "shop@example.com"}, quietLogger())

	res := h.HandleConsultation(context.Background(), events.ConsultationCreated{Customer: testCustomer()})
	if res.CustomerEmailID == "" {
		t.Error("customer email should still be sent")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", res.Errors)
	}
}

func TestHandleConsultation_NoCustomer(t *testing.T) {
	m := &recordingMailer{}
	h := NewHandler(m, Config{AdminEmail: "shop@example.com"}, quietLogger())
	h.HandleConsultation(context.Background(), events.ConsultationCreated{})
	if len(m.sent) != 0 {
		t.Fatalf("sent %d emails for an empty event", len(m.sent))
	}
}

func TestTemplates_EscapeAndOptionalRows(t *testing.T) {
	html, err := CustomerConfirmation(testCustomer())
	if err != nil {
		t.Fatalf("CustomerConfirmation: %v", err)
	}
	if strings.Contains(html, "<b>Silva</b>") {
		t.Error("customer name must be escaped")
	}
	if !strings.Contains(html, "Ana &lt;b&gt;Silva&lt;/b&gt;") {
		t.Error("escaped customer name missing")
	}
	for _, want := range []string{"Age:", "41", "Left Eye Power:", "Lens Type:", "progressive"} {
		if !strings.Contains(html, want) {
			t.Errorf("confirmation missing %q", want)
		}
	}
	for _, absent := range []string{"Gender:", "Right Eye Power:", "Notes:"} {
		if strings.Contains(html, absent) {
			t.Errorf("confirmation should omit empty row %q", absent)
		}
	}
}

func TestStartSubscriber(t *testing.T) {
	bus := events.NewLocalBus()
	defer bus.Close()
	m := &recordingMailer{}
	h := NewHandler(m, Config{AdminEmail: "shop@example.com"}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.StartSubscriber(ctx, bus) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = bus.Publish(ctx, events.TopicConsultationCreated, events.ConsultationCreated{Customer: testCustomer()})
		time.Sleep(10 * time.Millisecond)
		if _, ok := m.byRecipient("shop@example.com"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never sent the admin email")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("StartSubscriber: %v", err)
	}
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(quietLogger())
	a, _ := m.Send(context.Background(), Message{To: []string{"a@b.co"}})
	b, _ := m.Send(context.Background(), Message{To: []string{"a@b.co"}})
	if a == "" || a == b {
		t.Fatalf("ids %q, %q should be distinct", a, b)
	}
}
