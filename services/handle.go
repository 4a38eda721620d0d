package services

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	screenNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
	numericIDPattern  = regexp.MustCompile(`^[0-9]{1,20}$`)
)

var profileHosts = map[string]bool{
	"x.com":              true,
	"www.x.com":          true,
	"mobile.x.com":       true,
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
}

// NormalizeHandle reduces the accepted handle forms (numeric id, "@name",
// "name", or a profile URL) to a canonical form: a bare numeric id, or a
// lower-case screen name prefixed with "@". Only bare digits are read as an
// id; "@1234567" and profile URLs are screen names even when all digits.
func NormalizeHandle(raw string) (string, error) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return "", validationError("handle is required")
	}

	named := false
	if strings.Contains(s, "/") {
		name, err := screenNameFromURL(s)
		if err != nil {
			return "", err
		}
		s, named = name, true
	}
	if strings.HasPrefix(s, "@") {
		s, named = s[1:], true
	}

	if !named && IsExternalID(s) {
		return s, nil
	}
	if !screenNamePattern.MatchString(s) {
		return "", validationError("malformed handle %q", raw)
	}
	return "@" + strings.ToLower(s), nil
}

// ScreenName strips the "@" from a normalized screen name.
func ScreenName(handle string) string {
	return strings.TrimPrefix(handle, "@")
}

// IsExternalID reports whether s is already a canonical numeric account id.
func IsExternalID(s string) bool {
	return numericIDPattern.MatchString(s)
}

func screenNameFromURL(s string) (string, error) {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", validationError("malformed profile url: %v", err)
	}
	if !profileHosts[strings.ToLower(u.Host)] {
		return "", validationError("unsupported profile host %q", u.Host)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", validationError("profile url has no handle")
	}
	return segments[0], nil
}
