package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid lowercase", input: "sent", want: StatusSent},
		{name: "valid uppercase with spaces", input: " PENDING ", want: StatusPending},
		{name: "invalid", input: "queued", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelFromString(" WhatsApp ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error = %v", err)
	}
	if got != ChannelWhatsApp {
		t.Fatalf("ParseChannelFromString() = %s, want %s", got, ChannelWhatsApp)
	}

	_, err = ParseChannelFromString("push")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString() error = %v, want ErrValidation", err)
	}
}

func TestContactInfoAddressFor(t *testing.T) {
	t.Parallel()

	contact := ContactInfo{Email: "asha@example.com", MobileNumber: "9876543210"}

	if got := contact.AddressFor(ChannelEmail); got != "asha@example.com" {
		t.Fatalf("AddressFor(email) = %q", got)
	}
	if got := contact.AddressFor(ChannelSMS); got != "9876543210" {
		t.Fatalf("AddressFor(sms) = %q", got)
	}
	if got := contact.AddressFor(ChannelWhatsApp); got != "9876543210" {
		t.Fatalf("AddressFor(whatsapp) = %q", got)
	}
	if got := contact.AddressFor(Channel("fax")); got != "" {
		t.Fatalf("AddressFor(fax) = %q, want empty", got)
	}
}

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	base := Notification{
		Channel:      ChannelSMS,
		TemplateName: "otp.login",
		Recipient:    "+919876543210",
		Content:      RenderedMessage{Body: "hello"},
	}

	tests := []struct {
		name    string
		mutate  func(*Notification)
		wantErr error
	}{
		{
			name:   "valid notification",
			mutate: func(n *Notification) {},
		},
		{
			name: "missing recipient",
			mutate: func(n *Notification) {
				n.Recipient = "  "
			},
			wantErr: ErrNoRecipient,
		},
		{
			name: "missing content",
			mutate: func(n *Notification) {
				n.Content.Body = ""
			},
			wantErr: ErrValidation,
		},
		{
			name: "missing template name",
			mutate: func(n *Notification) {
				n.TemplateName = ""
			},
			wantErr: ErrValidation,
		},
		{
			name: "invalid channel",
			mutate: func(n *Notification) {
				n.Channel = Channel("push")
			},
			wantErr: ErrValidation,
		},
		{
			name: "email without subject",
			mutate: func(n *Notification) {
				n.Channel = ChannelEmail
				n.Recipient = "asha@example.com"
			},
			wantErr: ErrValidation,
		},
		{
			name: "email with subject",
			mutate: func(n *Notification) {
				n.Channel = ChannelEmail
				n.Recipient = "asha@example.com"
				n.Content.Subject = "Your code"
			},
		},
		{
			name: "sms content over limit",
			mutate: func(n *Notification) {
				n.Content.Body = strings.Repeat("a", MaxSMSContent+1)
			},
			wantErr: ErrValidation,
		},
		{
			name: "whatsapp content over limit",
			mutate: func(n *Notification) {
				n.Channel = ChannelWhatsApp
				n.Content.Body = strings.Repeat("a", MaxWhatsAppContent+1)
			},
			wantErr: ErrValidation,
		},
		{
			name: "rune-aware sms length accepted",
			mutate: func(n *Notification) {
				n.Content.Body = strings.Repeat("ऄ", MaxSMSContent)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestJobRunFinalStatus(t *testing.T) {
	t.Parallel()

	run := JobRun{Total: 3, Succeeded: 3}
	if got := run.FinalStatus(); got != JobRunStatusCompleted {
		t.Fatalf("FinalStatus() = %s, want %s", got, JobRunStatusCompleted)
	}

	run.Failed = 1
	if got := run.FinalStatus(); got != JobRunStatusPartialFailure {
		t.Fatalf("FinalStatus() = %s, want %s", got, JobRunStatusPartialFailure)
	}
}
