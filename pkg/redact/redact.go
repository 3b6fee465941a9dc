// redact не даёт PII и учётным данным магазина попадать в логи.
package redact

import "strings"

// Email маскирует локальную часть адреса, домен остаётся читаемым.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***"
	}

	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}

	return "***@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
