package scheduler

import "testing"

func TestNoopMailerNeverErrors(t *testing.T) {
	var m NoopMailer
	if err := m.Send("a@example.com", "subject", "body"); err != nil {
		t.Errorf("NoopMailer.Send() error = %v, want nil", err)
	}
}
