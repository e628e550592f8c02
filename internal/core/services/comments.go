package services

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

var emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// externalEmails returns the distinct lower-cased e-mail addresses found
// anywhere in the serialised comments response, excluding addresses at
// operatorDomain or one of its subdomains. The result is sorted.
func externalEmails(raw domain.Record, operatorDomain string) []string {
	operatorDomain = strings.ToLower(strings.TrimPrefix(operatorDomain, "@"))

	text, err := serialise(raw)
	if err != nil {
		return []string{}
	}

	seen := make(map[string]struct{})
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		from := loc[0] + escapeLen(text, loc[0])
		if from >= loc[1] {
			continue
		}
		addr := text[from:loc[1]]
		addr = strings.ToLower(strings.TrimRight(addr, "."))
		if !strings.Contains(addr, "@") || strings.HasPrefix(addr, "@") {
			continue
		}
		if isOperatorAddress(addr, operatorDomain) {
			continue
		}
		seen[addr] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func serialise(raw domain.Record) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// escapeLen is the length of a JSON escape sequence tail (`n` of `\n`,
// `u00e9` of `é`) that the match at start swallowed.
func escapeLen(text string, start int) int {
	if start == 0 || text[start-1] != '\\' {
		return 0
	}
	if text[start] == 'u' || text[start] == 'U' {
		return 5
	}
	return 1
}

func isOperatorAddress(addr, operatorDomain string) bool {
	if operatorDomain == "" {
		return false
	}
	at := strings.LastIndexByte(addr, '@')
	host := addr[at+1:]
	return host == operatorDomain || strings.HasSuffix(host, "."+operatorDomain)
}
