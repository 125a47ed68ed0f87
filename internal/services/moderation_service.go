package services

import (
	"regexp"
)

const (
	RejectInappropriateLanguage = "inappropriate_language"
	RejectURL                   = "url_not_allowed"
	RejectContactInfo           = "contact_info_not_allowed"
	RejectSpam                  = "spam_detected"
	RejectExcessiveCaps         = "excessive_caps"
)

var bannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno", "nude", "nudes",
	"scam", "scammer", "phishing", "malware",
}

// ModerationService screens text that will be shown publicly. Reviews that
// fail the screen are kept but never published.
type ModerationService struct {
	banned      []*regexp.Regexp
	url         *regexp.Regexp
	email       *regexp.Regexp
	phone       *regexp.Regexp
	repeatedRun *regexp.Regexp
	shouting    *regexp.Regexp
}

func NewModerationService() *ModerationService {
	ms := &ModerationService{
		url:      regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`),
		email:    regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`),
		phone:    regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}|\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`),
		shouting: regexp.MustCompile(`\b[A-Z]{5,}\b`),
	}

	// RE2 has no backreferences, so runs are listed per character.
	runs := "(?i)("
	for c := 'a'; c <= 'z'; c++ {
		runs += string(c) + "{5,}|"
	}
	ms.repeatedRun = regexp.MustCompile(runs + `!{4,}|\?{4,})`)

	for _, word := range bannedWords {
		ms.banned = append(ms.banned, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}
	return ms
}

// FilterContent returns ok=false and a reason code when text should not be
// published.
func (ms *ModerationService) FilterContent(text string) (bool, string) {
	if text == "" {
		return true, ""
	}
	for _, re := range ms.banned {
		if re.MatchString(text) {
			return false, RejectInappropriateLanguage
		}
	}
	switch {
	case ms.url.MatchString(text):
		return false, RejectURL
	case ms.email.MatchString(text), ms.phone.MatchString(text):
		return false, RejectContactInfo
	case ms.repeatedRun.MatchString(text):
		return false, RejectSpam
	case len(ms.shouting.FindAllString(text, -1)) > 2:
		return false, RejectExcessiveCaps
	}
	return true, ""
}
