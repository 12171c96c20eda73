package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"github.com/communityhub/backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{"vnd": FormatVND}).ParseFS(templateFS, "templates/*.html"))

// TemplateData is the data available to every email template.
type TemplateData struct {
	SiteName      string
	FullName      string
	Title         string
	StartsAt      string
	Location      string
	OnlineLink    string
	AccessLink    string
	Amount        int64
	PaymentMethod string
	TransactionID string
}

var subjects = map[string]string{
	models.EmailTypeRegistrationPending: "Registration received: %s",
	models.EmailTypeRegistrationConfirm: "Registration confirmed: %s",
	models.EmailTypeEnrollmentPending:   "Enrollment received: %s",
	models.EmailTypeEnrollmentConfirm:   "Enrollment confirmed: %s",
}

// Render returns the subject and HTML body of an email type.
func Render(emailType string, data TemplateData) (string, string, error) {
	subject, ok := subjects[emailType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, emailType)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, emailType+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", emailType, err)
	}
	return fmt.Sprintf(subject, data.Title), buf.String(), nil
}

// FormatVND formats an amount in dong with dot thousand separators, e.g. 500.000 ₫.
func FormatVND(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out) + " ₫"
	}
	return string(out) + " ₫"
}
