// Package recommend builds the keyword filters used to suggest experts,
// publications and trials from a patient's free-text conditions.
package recommend

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Keywords splits a comma-separated conditions field, trimming each entry
// and dropping empty ones.
func Keywords(conditions string) []string {
	var keywords []string
	for _, kw := range strings.Split(conditions, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// Pattern returns a case-insensitive alternation over the keywords in
// conditions. ok is false when there is nothing to match on.
func Pattern(conditions string) (re primitive.Regex, ok bool) {
	keywords := Keywords(conditions)
	if len(keywords) == 0 {
		return primitive.Regex{}, false
	}

	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return primitive.Regex{Pattern: strings.Join(quoted, "|"), Options: "i"}, true
}

// MatchAny builds a filter matching documents where any of fields matches re.
func MatchAny(re primitive.Regex, fields ...string) bson.M {
	if len(fields) == 1 {
		return bson.M{fields[0]: bson.M{"$regex": re}}
	}
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: bson.M{"$regex": re}})
	}
	return bson.M{"$or": or}
}

var conditionSeparators = regexp.MustCompile(`(?i)[,;\n]|\band\b`)

// ExtractConditions pulls a de-duplicated list of conditions out of a free
// text description such as "type 2 diabetes and high blood pressure".
func ExtractConditions(text string) []string {
	seen := make(map[string]bool)
	conditions := []string{}
	for _, part := range conditionSeparators.Split(text, -1) {
		part = strings.Trim(strings.TrimSpace(part), ".")
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if seen[key] {
			continue
		}
		seen[key] = true
		conditions = append(conditions, part)
	}
	return conditions
}
