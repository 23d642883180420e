package logger

import "strings"

const redacted = "[REDACTED]"

// secretKeyParts marks field names whose values never reach the log.
var secretKeyParts = []string{"password", "secret", "token", "authorization", "api_key", "apikey"}

func redact(key string, value any) any {
	k := strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(k, part) {
			return redacted
		}
	}
	if !strings.Contains(k, "email") {
		return value
	}
	if raw, ok := value.(string); ok {
		return MaskEmail(raw)
	}
	return value
}

// MaskEmail keeps the first character of the local part and the domain:
// "maria@vrumi.com.br" becomes "m***@vrumi.com.br".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
