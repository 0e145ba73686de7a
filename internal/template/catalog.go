package template

import "github.com/kursadbilgin/tutor-notifier/internal/domain"

// Template names used by marketplace workflows.
const (
	OTPSignup             = "otp.signup"
	OTPLogin              = "otp.login"
	OTPPasswordReset      = "otp.password_reset"
	Welcome               = "welcome"
	EnquiryCreated        = "enquiry.created"
	EnquiryAccepted       = "enquiry.accepted"
	ClassScheduled        = "class.scheduled"
	ClassCancelled        = "class.cancelled"
	ReferralReward        = "referral.reward"
	SubscriptionActivated = "subscription.activated"
	SubscriptionExpiring  = "subscription.expiring"
	PaymentReceived       = "payment.received"
	ReviewReceived        = "review.received"
)

const emailSignoff = "\n\nRegards,\nTeam {{brand}}"

// DefaultDefinitions returns the built-in marketplace catalog.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name: OTPSignup,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Verify your {{brand}} account",
					"Hi {{userName}},\n\nYour {{brand}} verification code is {{otp}}. Do not share this code with anyone."+emailSignoff,
				),
				domain.ChannelSMS:      MustText("", "{{otp}} is your {{brand}} verification code. Do not share it with anyone."),
				domain.ChannelWhatsApp: MustText("", "Hi {{userName}}, {{otp}} is your {{brand}} verification code."),
			},
		},
		{
			Name: OTPLogin,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Your {{brand}} login code",
					"Hi {{userName}},\n\nUse {{otp}} to log in to {{brand}}. If this wasn't you, please reset your password."+emailSignoff,
				),
				domain.ChannelSMS: MustText("", "{{otp}} is your {{brand}} login code."),
			},
		},
		{
			Name: OTPPasswordReset,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Reset your {{brand}} password",
					"Hi {{userName}},\n\nYour password reset code is {{otp}}. If you did not ask to reset your password, ignore this email."+emailSignoff,
				),
				domain.ChannelSMS: MustText("", "{{otp}} is your {{brand}} password reset code."),
			},
		},
		{
			Name: Welcome,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Welcome to {{brand}}",
					"Hi {{userName}},\n\nThanks for joining {{brand}} as a {{role}}. Complete your profile to get matched faster."+emailSignoff,
				),
				domain.ChannelWhatsApp: MustText("", "Hi {{userName}}, welcome to {{brand}}! Complete your profile to get matched faster."),
			},
		},
		{
			Name: EnquiryCreated,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"New enquiry from {{studentName}}",
					"Hi {{userName}},\n\n{{studentName}} is looking for a {{subject}} tutor in {{location}}.\nMessage: {{note}}\n\nRespond from your dashboard to connect."+emailSignoff,
				),
				domain.ChannelSMS:      MustText("", "Hi {{userName}}, new {{subject}} enquiry from {{studentName}} on {{brand}}. Open the app to respond."),
				domain.ChannelWhatsApp: MustText("", "Hi {{userName}}, {{studentName}} sent you a {{subject}} enquiry ({{location}}). Open {{brand}} to respond."),
			},
		},
		{
			Name: EnquiryAccepted,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"{{tutorName}} accepted your enquiry",
					"Hi {{userName}},\n\n{{tutorName}} accepted your {{subject}} enquiry. You can now schedule a class."+emailSignoff,
				),
				domain.ChannelSMS: MustText("", "Hi {{userName}}, {{tutorName}} accepted your {{subject}} enquiry on {{brand}}."),
			},
		},
		{
			Name: ClassScheduled,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Class scheduled: {{subject}} on {{date}}",
					"Hi {{userName}},\n\nYour {{subject}} class with {{counterpartName}} is scheduled for {{date}} at {{time}} ({{durationMinutes}} minutes)."+emailSignoff,
				),
				domain.ChannelSMS:      MustText("", "{{brand}}: {{subject}} class with {{counterpartName}} on {{date}} at {{time}}."),
				domain.ChannelWhatsApp: MustText("", "Hi {{userName}}, your {{subject}} class with {{counterpartName}} is on {{date}} at {{time}}."),
			},
		},
		{
			Name: ClassCancelled,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Class cancelled: {{subject}} on {{date}}",
					"Hi {{userName}},\n\nYour {{subject}} class on {{date}} at {{time}} was cancelled by {{cancelledBy}}."+emailSignoff,
				),
				domain.ChannelSMS: MustText("", "{{brand}}: your {{subject}} class on {{date}} at {{time}} was cancelled."),
			},
		},
		{
			Name: ReferralReward,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"You earned a referral reward",
					"Hi {{userName}},\n\n{{referee.name}} joined {{brand}} with your referral. {{reward.amount}} {{reward.currency}} has been added to your wallet."+emailSignoff,
				),
				domain.ChannelWhatsApp: MustText("", "Hi {{userName}}, you earned {{reward.amount}} {{reward.currency}} for referring {{referee.name}} to {{brand}}."),
			},
		},
		{
			Name: SubscriptionActivated,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Your {{planName}} plan is active",
					"Hi {{userName}},\n\nYour {{planName}} subscription is active until {{endDate}}."+emailSignoff,
				),
			},
		},
		{
			Name: SubscriptionExpiring,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Your {{planName}} plan expires on {{endDate}}",
					"Hi {{userName}},\n\nYour {{planName}} subscription expires on {{endDate}}. Renew now to keep receiving enquiries."+emailSignoff,
				),
				domain.ChannelSMS: MustText("", "{{brand}}: your {{planName}} plan expires on {{endDate}}. Renew to keep receiving enquiries."),
			},
		},
		{
			Name: PaymentReceived,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"Payment received: {{amount}} {{currency}}",
					"Hi {{userName}},\n\nWe received your payment of {{amount}} {{currency}} for {{planName}}. Reference: {{paymentId}}."+emailSignoff,
				),
			},
		},
		{
			Name: ReviewReceived,
			Channels: map[domain.Channel]RenderFunc{
				domain.ChannelEmail: MustText(
					"{{reviewerName}} left you a review",
					"Hi {{userName}},\n\n{{reviewerName}} rated you {{rating}}/5: \"{{comment}}\""+emailSignoff,
				),
			},
		},
	}
}

// NewDefaultRegistry builds the registry for the built-in catalog.
func NewDefaultRegistry(brand string) (*Registry, error) {
	return NewRegistry(brand, DefaultDefinitions()...)
}
