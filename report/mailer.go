package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/gomail.v2"

	"unit-pricing/utils"
)

// Subject of the report email.
const Subject = "Econometric pricing report - curve, elasticity and forecast"

// MailConfig holds SMTP credentials and recipients. To may list several
// addresses separated by commas.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	To       string
}

// Mailer sends the report email with its attachments.
type Mailer struct {
	cfg    MailConfig
	logger *utils.Logger
	retry  *utils.RetryConfig
	send   func(*gomail.Message) error
}

// NewMailer creates a Mailer that delivers over SMTP. Port 465 uses
// implicit TLS.
func NewMailer(cfg MailConfig, logger *utils.Logger, retry *utils.RetryConfig) *Mailer {
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &Mailer{
		cfg:    cfg,
		logger: logger,
		retry:  retry,
		send:   func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// Send mails body with every existing attachment. Missing files are
// skipped with a warning. It returns the number of files attached.
func (m *Mailer) Send(ctx context.Context, subject, body string, attachments []string) (int, error) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.User)
	msg.SetHeader("To", recipients(m.cfg.To)...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	attached := 0
	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			m.logger.Warn("[mailer] attachment %s skipped: %v", path, err)
			continue
		}
		msg.Attach(path, gomail.SetHeader(map[string][]string{
			"Content-Type": {contentType(path)},
		}))
		attached++
	}

	if err := m.retry.Do(ctx, "smtp send", func() error { return m.send(msg) }); err != nil {
		return 0, fmt.Errorf("mailer: %w", err)
	}
	m.logger.Info("[mailer] mail sent to %s with %d attachments", m.cfg.To, attached)
	return attached, nil
}

func recipients(to string) []string {
	var out []string
	for _, a := range strings.Split(to, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// Attachments lists the report files in mailing order: the named files
// first, then forecast workbooks, then charts. Only files that exist are
// returned.
func Attachments(outputDir, plotsDir string, named ...string) []string {
	var out []string
	for _, p := range named {
		if fileExists(p) {
			out = append(out, p)
		}
	}
	forecasts, _ := filepath.Glob(filepath.Join(outputDir, "forecast_*.xlsx"))
	sort.Strings(forecasts)
	out = append(out, forecasts...)

	charts, _ := filepath.Glob(filepath.Join(plotsDir, "*.jpg"))
	sort.Strings(charts)
	return append(out, charts...)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
