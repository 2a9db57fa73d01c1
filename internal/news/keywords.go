package news

import "strings"

// breakingKeywords is the headline phrase list that marks an article as
// breaking when it also clears the recency window. Matching is a plain
// lowercase substring test.
var breakingKeywords = []string{
	"files chapter 11", "files chapter 7", "files for bankruptcy", "bankruptcy protection", "receivership filed",
	"material cybersecurity incident", "major data breach", "ransomware attack",
	"notice of delisting", "delisting determination", "trading suspended", "listing standards deficiency",
	"restates financials", "accounting restatement", "material weakness disclosed", "non-reliance on financials",
	"ceo resigns", "cfo resigns", "ceo terminated", "cfo terminated", "ceo steps down", "interim ceo appointed", "ceo ousted",
	"terminates merger agreement", "terminates acquisition agreement", "merger terminated", "deal terminated", "breaks merger",
	"withdraws guidance", "guidance withdrawn", "suspends guidance", "slashes outlook", "cuts outlook",
	"covenant breach", "loan default", "debt default", "missed payment",
	"auditor resigns", "dismisses auditor", "auditor terminated",
	"suspends dividend", "cuts dividend", "dividend suspended", "eliminates dividend",
	"trading halted", "halt pending news", "volatility halt",
	"sec charges", "sec investigation", "fda rejection", "doj investigation", "subpoena received",
	"fda approves", "fda approval for", "receives fda approval", "breakthrough therapy designation", "fast track designation",
	"beats earnings estimates", "crushes earnings", "blows past earnings", "raises full year guidance",
	"wins contract worth", "awarded contract valued", "secures major contract", "receives purchase order",
	"upgrades to buy", "raises price target", "strong buy rating",
	"receives buyout offer", "takeover bid at", "acquisition offer of", "agrees to be acquired", "to be acquired for", "buyout valued at", "acquisition at premium",
	"merger agreement signed", "definitive merger agreement", "announces acquisition of",
	"special dividend of", "initiates dividend", "announces buyback program", "authorizes buyback of",
	"strategic partnership with", "joint venture with",
	"successful trial results", "positive phase",
	"record revenue", "record quarterly revenue",
	"warren buffett buys",
	"credit rating upgraded", "rating upgrade by",
	"wins patent lawsuit", "patent granted for",
	"debt free",
	"bitcoin surges", "bitcoin rallies", "bitcoin hits new high", "bitcoin crashes",
	"expands mining operations", "increases hash rate", "purchases mining equipment",
	"purchases bitcoin", "adds bitcoin to balance sheet", "acquires bitcoin", "buys bitcoin worth",
	"bitcoin etf approval", "spot bitcoin etf", "sec approves bitcoin", "bitcoin legal tender",
	"private placement", "private placement financing", "announces private placement",
	"executes loi", "signs loi", "letter of intent", "strategic partnership", "crispr", "molecule ai", "ai breakthrough", "clinical trial", "orphan drug designation", "phase 1 trial", "research collaboration", "technology licensing",
}

// MatchesBreakingKeyword reports whether the text contains any breaking
// phrase. Callers pass headline plus summary.
func MatchesBreakingKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range breakingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
