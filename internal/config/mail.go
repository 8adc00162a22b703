package config

import "time"

// MailConfig configures the SMTP relay used by the notifier.  An empty
// Host disables email delivery; events are still written to the log file.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	LogFile  string
	Timeout  time.Duration // bounds one SMTP session
}

func LoadMailConfig() MailConfig {
	loadDotEnv()
	return MailConfig{
		Host:     envStr("SMTP_HOST", ""),
		Port:     envInt("SMTP_PORT", 587),
		Username: envStr("SMTP_USER", ""),
		Password: envStr("SMTP_PASS", ""),
		From:     envStr("SENDER_EMAIL", "bookings@localhost"),
		FromName: envStr("MAIL_FROM_NAME", "HoYo Booking"),
		LogFile:  envStr("BOOKING_LOG_FILE", "logs/booking.log"),
		Timeout:  envDur("SMTP_TIMEOUT", 15*time.Second),
	}
}
